package extract

import (
	"log/slog"
	"net/http"
	"time"
)

// MIME types with built-in extractors.
const (
	MIMEPlain    = "text/plain"
	MIMEMarkdown = "text/markdown"
	MIMECSV      = "text/csv"
	MIMEHTML     = "text/html"
	MIMEXHTML    = "application/xhtml+xml"
	MIMETextXML  = "text/xml"
	MIMEXML      = "application/xml"
	MIMEPDF      = "application/pdf"
	MIMEMessage  = "message/rfc822"
	MIMEDocx     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEXlsx     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEPptx     = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MIMEODT      = "application/vnd.oasis.opendocument.text"

	MIMEDoc = "application/msword"
	MIMEXls = "application/vnd.ms-excel"
	MIMEPpt = "application/vnd.ms-powerpoint"
	MIMERTF = "application/rtf"
)

// Options configures NewDefaultRegistry.
type Options struct {
	// TikaURL enables legacy binary formats through an Apache Tika server.
	TikaURL string
	// Timeout bounds a single Tika call (default: 30s).
	Timeout time.Duration
	// HTTPClient overrides the client used to reach Tika.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewDefaultRegistry builds a registry with every built-in extractor.
func NewDefaultRegistry(opts Options) *Registry {
	r := NewRegistry(opts.Logger)

	plain := PlainText{}
	r.Register(MIMEPlain, plain)
	r.Register(MIMEMarkdown, plain)
	r.Register(MIMECSV, plain)

	html := NewHTML()
	r.Register(MIMEHTML, html)
	r.Register(MIMEXHTML, html)

	xmlText := XML{}
	r.Register(MIMETextXML, xmlText)
	r.Register(MIMEXML, xmlText)

	r.Register(MIMEPDF, PDF{})
	r.Register(MIMEMessage, NewMail())

	r.Register(MIMEDocx, NewOfficeXML("word/document.xml"))
	r.Register(MIMEXlsx, NewOfficeXML("xl/sharedStrings.xml", "xl/worksheets/"))
	r.Register(MIMEPptx, NewOfficeXML("ppt/slides/"))
	r.Register(MIMEODT, NewOfficeXML("content.xml"))

	if opts.TikaURL != "" {
		tika := NewTika(opts.TikaURL, opts.HTTPClient, opts.Timeout, opts.Logger)
		for _, t := range []string{MIMEDoc, MIMEXls, MIMEPpt, MIMERTF} {
			r.Register(t, tika)
		}
	}

	return r
}
