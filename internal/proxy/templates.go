package proxy

import "text/template"

// Upstream document: one logical service name mapped to its current
// backend. Rewritten wholesale on every deploy; the backend line is the
// only thing that changes between releases.
var upstreamTemplate = template.Must(template.New("upstream").Parse(
	`# managed by slipway; do not edit
upstream {{ .ServiceName }} {
    server {{ .Backend }};
}
`))

// Site document: listener plus routing or serving rules. Container mode
// proxies to the upstream; static mode serves the current release tree.
var siteTemplate = template.Must(template.New("site").Parse(
	`# managed by slipway; do not edit
server {
    listen 80;
    server_name {{ .Domain }};

{{- if .TLS }}
    return 301 https://$host$request_uri;
}

server {
    listen 443 ssl;
    server_name {{ .Domain }};

    ssl_certificate {{ .TLS.CertPath }};
    ssl_certificate_key {{ .TLS.KeyPath }};
{{- end }}

{{- if .BodySizeLimit }}
    client_max_body_size {{ .BodySizeLimit }};
{{- end }}

{{- if .Static }}
    root {{ .Root }};
    index index.html;

    location / {
        try_files $uri $uri/ /index.html;
    }
{{- else }}
    location / {
        proxy_pass http://{{ .ServiceName }};
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
{{- if .ConnectTimeout }}
        proxy_connect_timeout {{ .ConnectTimeout }};
{{- end }}
{{- if .ReadTimeout }}
        proxy_read_timeout {{ .ReadTimeout }};
{{- end }}
{{- if .SendTimeout }}
        proxy_send_timeout {{ .SendTimeout }};
{{- end }}
{{- if .BufferSize }}
        proxy_buffer_size {{ .BufferSize }};
        proxy_buffers 8 {{ .BufferSize }};
{{- end }}
    }
{{- end }}
}
`))

// Harness config wrapping the staged documents so the proxy's own validator
// can test the rendered set as a unit, without touching the active tree.
var validateTemplate = template.Must(template.New("validate").Parse(
	`events {}
http {
{{- range .Includes }}
    include {{ . }};
{{- end }}
}
`))
