package smtp

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

type codeEmail struct {
	Subject string
	Title   string
	Lead    string
	Code    string
	Minutes int
}

var htmlTmpl = htmltemplate.Must(htmltemplate.New("code").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="margin:0;padding:0;font-family:'Segoe UI',Tahoma,Verdana,sans-serif;background-color:#f0f4f8;color:#334155;">
  <div style="max-width:600px;margin:20px auto;background-color:#ffffff;border-radius:16px;overflow:hidden;">
    <div style="background-color:#0B1120;padding:40px 30px;text-align:center;border-bottom:4px solid #06B6D4;">
      <div style="color:#ffffff;font-size:26px;font-weight:800;letter-spacing:1px;">EDU<span style="color:#06B6D4;">SPHERE</span></div>
    </div>
    <div style="padding:40px 30px;">
      <h2 style="color:#1e293b;font-size:22px;margin-top:0;">{{.Title}}</h2>
      <p style="font-size:16px;line-height:1.6;color:#64748b;">{{.Lead}}</p>
      <div style="margin:35px 0;text-align:center;">
        <div style="display:inline-block;background-color:#F8FAFC;border:2px dashed #06B6D4;border-radius:12px;padding:15px 40px;">
          <p style="font-size:32px;font-weight:800;color:#0B1120;letter-spacing:8px;font-family:monospace;margin:0;">{{.Code}}</p>
        </div>
      </div>
      <p style="text-align:center;font-size:14px;color:#ef4444;">Este código expira en {{.Minutes}} minutos</p>
    </div>
    <div style="background-color:#f8fafc;padding:20px;text-align:center;font-size:12px;color:#94a3b8;">EduSphere</div>
  </div>
</body>
</html>`))

var textTmpl = texttemplate.Must(texttemplate.New("code").Parse(`{{.Title}}

{{.Lead}}

    {{.Code}}

Este código expira en {{.Minutes}} minutos.

- EduSphere`))

func (e codeEmail) render() (htmlBody, textBody string, err error) {
	var h, t bytes.Buffer
	if err := htmlTmpl.Execute(&h, e); err != nil {
		return "", "", fmt.Errorf("render html email: %w", err)
	}
	if err := textTmpl.Execute(&t, e); err != nil {
		return "", "", fmt.Errorf("render text email: %w", err)
	}
	return h.String(), t.String(), nil
}
