package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strings"
	"time"
)

var alertTmpl = template.Must(template.New("alert").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #222; background-color:#f9f9f9; padding:20px;">
<div style="max-width:600px; background:white; padding:25px; border-radius:10px;">
<h2 style="color:#1a73e8; text-align:center;">HomeCare Hospital - AI Alert System</h2>
<p>Dear <strong>{{.DoctorName}}</strong>,</p>
<p>Our AI monitoring system has detected a <strong>{{.UrgencyUpper}}</strong> risk event for the following patient under your supervision. Kindly review the case details below:</p>
<table style="border-collapse: collapse; width: 100%; border:1px solid #ddd;">
<tr><td style="padding:8px;"><strong>Patient Name</strong></td><td style="padding:8px;">{{.PatientName}}</td></tr>
<tr><td style="padding:8px;"><strong>Patient ID</strong></td><td style="padding:8px;">{{.PatientID}}</td></tr>
<tr><td style="padding:8px;"><strong>Detected Condition</strong></td><td style="padding:8px;">{{.Disease}}</td></tr>
<tr><td style="padding:8px;"><strong>Urgency Level</strong></td><td style="padding:8px; color:{{if eq .Urgency "high"}}red{{else}}#e68a00{{end}};">{{.Urgency}}</td></tr>
<tr><td style="padding:8px;"><strong>Symptoms</strong></td><td style="padding:8px;">{{.SymptomList}}</td></tr>
<tr><td style="padding:8px;"><strong>Patient Description</strong></td><td style="padding:8px;">{{.Description}}</td></tr>
</table>
<p style="margin-top:20px;">Please review this patient's case in your <strong>HomeCare Hospital Dashboard</strong> and take necessary action.</p>
<p style="color:#555;">Regards,<br><strong>HomeCare AI - Automated Alert System</strong></p>
</div>
</body>
</html>`))

type emailView struct {
	Alert
	UrgencyUpper string
	SymptomList  string
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// Email sends HTML alerts over implicit-TLS SMTP (port 465).
type Email struct {
	cfg EmailConfig
}

func NewEmail(cfg EmailConfig) *Email {
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Email{cfg: cfg}
}

func (e *Email) Method() string { return "email" }

func Subject(a Alert) string {
	name := a.PatientName
	if name == "" {
		name = "Patient"
	}
	return fmt.Sprintf("[HomeCare Alert] %s (%s) - Urgency: %s | Suspected: %s",
		name, a.PatientID, strings.ToUpper(a.Urgency), a.Disease)
}

// RenderHTML builds the alert body; template escaping covers model-generated text.
func RenderHTML(a Alert) (string, error) {
	if a.PatientName == "" {
		a.PatientName = "Patient"
	}
	var buf bytes.Buffer
	err := alertTmpl.Execute(&buf, emailView{
		Alert:        a,
		UrgencyUpper: strings.ToUpper(a.Urgency),
		SymptomList:  strings.Join(a.Symptoms, ", "),
	})
	return buf.String(), err
}

func (e *Email) message(a Alert, body string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: HomeCare Hospital AI Alert <%s>\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", a.DoctorEmail)
	fmt.Fprintf(&b, "Subject: %s\r\n", Subject(a))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(body)
	return b.Bytes()
}

func (e *Email) Send(ctx context.Context, a Alert) error {
	if a.DoctorEmail == "" {
		return errors.New("doctor has no email address")
	}
	body, err := RenderHTML(a)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(e.cfg.Host, fmt.Sprint(e.cfg.Port))
	d := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: e.cfg.Timeout},
		Config:    &tls.Config{ServerName: e.cfg.Host, MinVersion: tls.VersionTLS12},
	}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	} else {
		_ = conn.SetDeadline(time.Now().Add(e.cfg.Timeout))
	}

	c, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if e.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)); err != nil {
			return err
		}
	}
	if err := c.Mail(e.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(a.DoctorEmail); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(e.message(a, body)); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
