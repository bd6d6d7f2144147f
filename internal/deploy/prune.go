package deploy

// selectPrunable picks release directory names to delete. entries must be
// ordered newest first (the output of ls -1t); the retain newest survive,
// and the current release is never selected regardless of its position.
func selectPrunable(entries []string, current string, retain int) []string {
	if retain < 1 {
		retain = 1
	}

	var prunable []string
	kept := 0
	for _, entry := range entries {
		if entry == current {
			kept++
			continue
		}
		if kept < retain {
			kept++
			continue
		}
		prunable = append(prunable, entry)
	}
	return prunable
}
