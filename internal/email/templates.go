package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	texttpl "text/template"
)

//go:embed templates/*.html templates/*.txt
var defaultTemplates embed.FS

const (
	TemplateActivation     = "activation"
	TemplateReset          = "reset_password"
	TemplateValidationCode = "validation_code"
)

// LinkVars son las variables de los templates con link (activación y reset).
type LinkVars struct {
	Username string
	Link     string
	TTL      string
}

// CodeVars son las variables del template de validation code.
type CodeVars struct {
	Code string
	TTL  string
}

type pair struct {
	html *template.Template
	text *texttpl.Template
}

// Templates agrupa los pares html/txt por nombre.
type Templates struct {
	byName map[string]pair
}

// LoadTemplates carga los templates de dir. Con dir vacío usa los embebidos.
// Un template faltante en dir cae al embebido.
func LoadTemplates(dir string) (*Templates, error) {
	var override fs.FS
	if dir != "" {
		override = os.DirFS(dir)
	}
	defaults, err := fs.Sub(defaultTemplates, "templates")
	if err != nil {
		return nil, err
	}

	read := func(name string) (string, error) {
		if override != nil {
			if b, err := fs.ReadFile(override, name); err == nil {
				return string(b), nil
			}
		}
		b, err := fs.ReadFile(defaults, name)
		return string(b), err
	}

	t := &Templates{byName: map[string]pair{}}
	for _, name := range []string{TemplateActivation, TemplateReset, TemplateValidationCode} {
		h, err := read(name + ".html")
		if err != nil {
			return nil, fmt.Errorf("email template %s.html: %w", name, err)
		}
		x, err := read(name + ".txt")
		if err != nil {
			return nil, fmt.Errorf("email template %s.txt: %w", name, err)
		}
		hT, err := template.New(name + "_html").Parse(h)
		if err != nil {
			return nil, fmt.Errorf("email template %s.html: %w", name, err)
		}
		xT, err := texttpl.New(name + "_txt").Parse(x)
		if err != nil {
			return nil, fmt.Errorf("email template %s.txt: %w", name, err)
		}
		t.byName[name] = pair{html: hT, text: xT}
	}
	return t, nil
}

// Render ejecuta el par html/txt de name con vars.
func (t *Templates) Render(name string, vars any) (html, text string, err error) {
	p, ok := t.byName[name]
	if !ok {
		return "", "", fmt.Errorf("email template %q not loaded", name)
	}
	var hb, tb bytes.Buffer
	if err := p.html.Execute(&hb, vars); err != nil {
		return "", "", err
	}
	if err := p.text.Execute(&tb, vars); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}
