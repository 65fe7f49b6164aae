package extract

import (
	"archive/zip"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/mind-engage/mindengage-quizdocs/internal/quiz"
)

const (
	docxBody = "word/document.xml"
	docxRels = "word/_rels/document.xml.rels"

	maxEmbeddedImage = 10 << 20
)

// DocxExtractor reads Office Open XML word documents: paragraphs become
// lines, tables become Table payloads, OMML math is collected and embedded
// pictures are inlined as data URLs.
type DocxExtractor struct{}

func (DocxExtractor) Extract(_ context.Context, p, _ string, _ quiz.Level) ([]Draft, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	files := map[string]*zip.File{}
	for _, f := range zr.File {
		files[f.Name] = f
	}
	body, ok := files[docxBody]
	if !ok {
		return nil, fmt.Errorf("docx: %s missing", docxBody)
	}
	rels, err := readRels(files[docxRels])
	if err != nil {
		return nil, fmt.Errorf("docx rels: %w", err)
	}

	rc, err := body.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	w := &docxWalker{files: files, rels: rels}
	if err := w.walk(xml.NewDecoder(rc)); err != nil {
		return nil, fmt.Errorf("docx body: %w", err)
	}
	return parseBlocks(w.lines), nil
}

type relationship struct {
	ID         string `xml:"Id,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

func readRels(f *zip.File) (map[string]relationship, error) {
	out := map[string]relationship{}
	if f == nil {
		return out, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var doc struct {
		Rels []relationship `xml:"Relationship"`
	}
	if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
		return nil, err
	}
	for _, r := range doc.Rels {
		out[r.ID] = r
	}
	return out, nil
}

type docxWalker struct {
	files map[string]*zip.File
	rels  map[string]relationship
	lines []line

	para    strings.Builder
	math    []string
	mathBuf *strings.Builder
	image   string

	tblDepth int
	table    *Table
	row      []string
	cell     strings.Builder
}

func (w *docxWalker) walk(dec *xml.Decoder) error {
	inText, inRun := false, 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				w.tblDepth++
				if w.tblDepth == 1 {
					w.flushPara()
					w.table = &Table{Rows: [][]string{}}
				}
			case "tr":
				if w.tblDepth == 1 {
					w.row = []string{}
				}
			case "tc":
				if w.tblDepth == 1 {
					w.cell.Reset()
				}
			case "p":
				if w.tblDepth > 0 && w.cell.Len() > 0 {
					w.cell.WriteByte(' ')
				}
			case "r":
				inRun++
			case "t":
				inText = true
			case "tab":
				if inRun > 0 {
					w.write("\t")
				}
			case "br", "cr":
				if inRun > 0 {
					w.write("\n")
				}
			case "oMath":
				if w.mathBuf == nil {
					w.mathBuf = &strings.Builder{}
				}
			case "blip":
				if w.tblDepth == 0 && w.image == "" {
					w.image = w.embed(t)
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun--
			case "t":
				inText = false
			case "oMath":
				if w.mathBuf != nil {
					if m := strings.TrimSpace(w.mathBuf.String()); m != "" {
						w.math = append(w.math, m)
					}
					w.mathBuf = nil
				}
			case "p":
				if w.tblDepth == 0 {
					w.flushPara()
				}
			case "tc":
				if w.tblDepth == 1 {
					w.row = append(w.row, strings.TrimSpace(w.cell.String()))
				}
			case "tr":
				if w.tblDepth == 1 {
					w.table.Rows = append(w.table.Rows, w.row)
				}
			case "tbl":
				w.tblDepth--
				if w.tblDepth == 0 {
					w.lines = append(w.lines, line{table: w.table})
					w.table = nil
				}
			}
		case xml.CharData:
			if inText {
				w.write(string(t))
			}
		}
	}
}

func (w *docxWalker) write(s string) {
	if w.tblDepth > 0 {
		w.cell.WriteString(s)
		return
	}
	w.para.WriteString(s)
	if w.mathBuf != nil {
		w.mathBuf.WriteString(s)
	}
}

func (w *docxWalker) flushPara() {
	text := w.para.String()
	w.para.Reset()
	parts := strings.Split(text, "\n")
	for i, p := range parts {
		ln := line{text: p}
		if i == 0 {
			ln.math, ln.image = w.math, w.image
		}
		w.lines = append(w.lines, ln)
	}
	w.math, w.image = nil, ""
}

// embed resolves an <a:blip r:embed="rIdN"> to a data URL, or to the target
// itself when the relationship points outside the package.
func (w *docxWalker) embed(el xml.StartElement) string {
	var id string
	for _, a := range el.Attr {
		if a.Name.Local == "embed" || a.Name.Local == "link" {
			id = a.Value
			break
		}
	}
	rel, ok := w.rels[id]
	if !ok {
		return ""
	}
	if strings.EqualFold(rel.TargetMode, "External") {
		return rel.Target
	}
	name := strings.TrimPrefix(rel.Target, "/")
	if !strings.HasPrefix(rel.Target, "/") {
		name = path.Join("word", rel.Target)
	}
	f, ok := w.files[name]
	if !ok || f.UncompressedSize64 > maxEmbeddedImage {
		return ""
	}
	rc, err := f.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, maxEmbeddedImage))
	if err != nil {
		return ""
	}
	ct := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(b)
}
