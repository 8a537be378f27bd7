package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/vmalyshev/studycast/internal/core/domain"
)

func (e *Extractor) extractDocument(_ context.Context, path, mimeType string) domain.DocumentRecord {
	var (
		content    string
		sourceType = domain.SourceDocument
		err        error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		content, err = pdfText(path)
	case ".xlsx", ".xlsm":
		content, err = spreadsheetText(path)
	case ".docx":
		content, err = wordText(path)
	case ".pptx":
		sourceType = domain.SourcePresentation
		content, err = slidesText(path)
	default:
		if strings.HasPrefix(mimeType, "text/") {
			sourceType = domain.SourceText
			content, err = plainText(path)
			break
		}
		return domain.FailedRecord(path, fmt.Sprintf("unsupported document format: %s", path))
	}
	if err != nil {
		return domain.FailedRecord(path, fmt.Sprintf("document extraction: %v", err))
	}
	if strings.TrimSpace(content) == "" {
		return domain.FailedRecord(path, fmt.Sprintf("no text extracted from %s", path))
	}
	return domain.NewRecord(sourceType, path, content)
}

func plainText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("not valid utf-8 text")
	}
	return string(raw), nil
}

func pdfText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return "", fmt.Errorf("copy pdf text: %w", err)
	}
	return buf.String(), nil
}

func spreadsheetText(path string) (string, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	var out strings.Builder
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(sheet)
		for _, row := range rows {
			out.WriteString("\n")
			out.WriteString(strings.Join(row, "\t"))
		}
	}
	return out.String(), nil
}

// wordText pulls paragraph text straight out of the docx archive. No
// corpus library parses word documents, and the archive is just zipped
// xml, so a minimal walk over w:p/w:t nodes suffices.
func wordText(path string) (string, error) {
	return officeXMLText(path, func(name string) bool {
		return name == "word/document.xml"
	}, "p", "t")
}

func slidesText(path string) (string, error) {
	return officeXMLText(path, func(name string) bool {
		return strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml")
	}, "p", "t")
}

func officeXMLText(path string, keep func(string) bool, paragraphTag, textTag string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	var names []string
	files := make(map[string]*zip.File)
	for _, f := range archive.File {
		if keep(f.Name) {
			names = append(names, f.Name)
			files[f.Name] = f
		}
	}
	sort.Strings(names)

	var out strings.Builder
	for _, name := range names {
		part, err := files[name].Open()
		if err != nil {
			return "", fmt.Errorf("open part %s: %w", name, err)
		}
		text, err := xmlParagraphText(part, paragraphTag, textTag)
		part.Close()
		if err != nil {
			return "", fmt.Errorf("parse part %s: %w", name, err)
		}
		if text == "" {
			continue
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(text)
	}
	return out.String(), nil
}

func xmlParagraphText(r io.Reader, paragraphTag, textTag string) (string, error) {
	decoder := xml.NewDecoder(r)
	var (
		out    strings.Builder
		inText bool
	)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == textTag {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case textTag:
				inText = false
			case paragraphTag:
				out.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}
	return strings.TrimSpace(out.String()), nil
}
