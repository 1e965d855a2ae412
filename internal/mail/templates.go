package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

//go:embed templates/*
var templateFS embed.FS

var (
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt"))
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
)

type resetData struct {
	Username string
	Link     string
}

// PasswordReset builds the reset email sent to a user.
func PasswordReset(from, to, username, link string) (Message, error) {
	data := resetData{Username: username, Link: link}

	var text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, "reset_password.txt", data); err != nil {
		return Message{}, fmt.Errorf("render reset text: %w", err)
	}
	if err := htmlTemplates.ExecuteTemplate(&html, "reset_password.html", data); err != nil {
		return Message{}, fmt.Errorf("render reset html: %w", err)
	}

	return Message{
		From:    from,
		To:      []string{to},
		Subject: "[Microblog] Reset Your Password",
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
