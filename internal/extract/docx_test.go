package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const docxDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"
  xmlns:m="http://schemas.openxmlformats.org/officeDocument/2006/math"
  xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
  xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<w:body>
  <w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>Algebra warmup</w:t></w:r></w:p>
  <w:p><w:r><w:t xml:space="preserve">1. Solve </w:t></w:r><m:oMath><m:r><m:t>x+2=5</m:t></m:r></m:oMath></w:p>
  <w:p><w:r><w:t>A) 1</w:t></w:r></w:p>
  <w:p><w:r><w:t>B) 2</w:t></w:r></w:p>
  <w:p><w:r><w:t>C) 3</w:t></w:r></w:p>
  <w:p><w:r><w:t>D) 4</w:t></w:r></w:p>
  <w:p><w:r><w:t>Answer: C</w:t></w:r></w:p>
  <w:p><w:r><w:t>2. Use the table</w:t></w:r></w:p>
  <w:tbl>
    <w:tr><w:tc><w:p><w:r><w:t>x</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>y</w:t></w:r></w:p></w:tc></w:tr>
    <w:tr><w:tc><w:p><w:r><w:t>1</w:t></w:r></w:p><w:p><w:r><w:t>one</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>2</w:t></w:r></w:p></w:tc></w:tr>
  </w:tbl>
  <w:p><w:r><w:t>Answer: 3</w:t></w:r></w:p>
  <w:p><w:r><w:t>3. Describe the picture</w:t></w:r><w:r><w:br/><w:t>[IMAGE:graph.png]</w:t></w:r></w:p>
  <w:p><w:r><w:drawing><a:graphic><a:graphicData><a:blip r:embed="rId5"/></a:graphicData></a:graphic></w:drawing></w:r></w:p>
</w:body>
</w:document>`

const docxRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>
</Relationships>`

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sampleDocx(t *testing.T) []byte {
	return buildZip(t, map[string]string{
		"[Content_Types].xml":          `<Types/>`,
		"word/document.xml":            docxDocument,
		"word/_rels/document.xml.rels": docxRelsXML,
		"word/media/image1.png":        "\x89PNG",
	})
}

func TestDocxExtractor(t *testing.T) {
	p := filepath.Join(t.TempDir(), "quiz.docx")
	if err := os.WriteFile(p, sampleDocx(t), 0o644); err != nil {
		t.Fatal(err)
	}
	drafts, err := DocxExtractor{}.Extract(context.Background(), p, "algebra1", "Easy")
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 3 {
		t.Fatalf("got %d drafts: %+v", len(drafts), drafts)
	}

	q1 := drafts[0]
	if q1.Text != "Solve x+2=5" {
		t.Fatalf("q1 text %q", q1.Text)
	}
	if len(q1.Math) != 1 || q1.Math[0] != "x+2=5" {
		t.Fatalf("q1 math %v", q1.Math)
	}
	if i, ok := q1.Answer.Index(); !ok || i != 2 || len(q1.Options) != 4 {
		t.Fatalf("q1 answer %+v options %v", q1.Answer, q1.Options)
	}

	q2 := drafts[1]
	if len(q2.Tables) != 1 || !strings.Contains(q2.Text, "[TABLE:1]") {
		t.Fatalf("q2: %+v", q2)
	}
	rows := q2.Tables[0].Rows
	if len(rows) != 2 || rows[1][0] != "1 one" || rows[1][1] != "2" {
		t.Fatalf("q2 rows %v", rows)
	}

	q3 := drafts[2]
	if q3.Text != "Describe the picture\n[IMAGE:graph.png]" {
		t.Fatalf("q3 text %q", q3.Text)
	}
	if !strings.HasPrefix(q3.ImageURL, "data:image/png;base64,") {
		t.Fatalf("q3 image %q", q3.ImageURL)
	}
}

func TestDocxExtractorRejectsNonDocx(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.docx")
	if err := os.WriteFile(p, buildZip(t, map[string]string{"hello.txt": "hi"}), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (DocxExtractor{}).Extract(context.Background(), p, "c", "Easy"); err == nil {
		t.Fatal("expected error for zip without word/document.xml")
	}
}

func TestZipExtractorPicksPrimaryDocument(t *testing.T) {
	bundle := buildZip(t, map[string]string{
		"__MACOSX/._quiz.docx": "junk",
		"notes.txt":            "1. from the text file\nAnswer: x\n",
		"quiz/quiz.docx":       string(sampleDocx(t)),
		"quiz/graph.png":       "png",
	})
	p := filepath.Join(t.TempDir(), "bundle.zip")
	if err := os.WriteFile(p, bundle, 0o644); err != nil {
		t.Fatal(err)
	}
	drafts, err := NewRegistry().Extract(context.Background(), p, "algebra1", "Easy")
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 3 {
		t.Fatalf("docx member not preferred: %d drafts", len(drafts))
	}
}

func TestZipExtractorWithoutDocument(t *testing.T) {
	p := filepath.Join(t.TempDir(), "images.zip")
	if err := os.WriteFile(p, buildZip(t, map[string]string{"a.png": "x"}), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewRegistry().Extract(context.Background(), p, "c", "Easy")
	if !errors.Is(err, ErrNoDocumentInArchive) {
		t.Fatalf("want ErrNoDocumentInArchive, got %v", err)
	}
}

func TestZipExtractorCapsDocumentMember(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.zip")
	doc := "1. " + strings.Repeat("long question text ", 64) + "\nAnswer: x\n"
	if err := os.WriteFile(p, buildZip(t, map[string]string{"quiz.txt": doc}), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewRegistry(WithMaxMemberBytes(256)).Extract(context.Background(), p, "c", "Easy")
	if !errors.Is(err, ErrMemberTooLarge) {
		t.Fatalf("want ErrMemberTooLarge, got %v", err)
	}

	drafts, err := NewRegistry(WithMaxMemberBytes(int64(len(doc)))).Extract(context.Background(), p, "c", "Easy")
	if err != nil || len(drafts) != 1 {
		t.Fatalf("member at the cap: %d drafts, err %v", len(drafts), err)
	}
}
