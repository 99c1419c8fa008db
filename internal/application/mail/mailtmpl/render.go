// Package mailtmpl renders the HTML bodies of outgoing emails. Rendering is a pure
// function of its input data.
package mailtmpl

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var files embed.FS

var templates = template.Must(template.ParseFS(files, "templates/*.html"))

type Footer struct {
	Year    int
	Company string
	Address string
}

type VerificationData struct {
	Footer
	Username         string
	OTP              string
	ExpiresInMinutes int
}

type WelcomeData struct {
	Footer
	Username string
}

func RenderVerification(data VerificationData) (string, error) {
	return render("verification.html", data)
}

func RenderWelcome(data WelcomeData) (string, error) {
	return render("welcome.html", data)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}
