package importer

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Field names produced by the USLM parser. Title and chapter context is
// inherited down from the enclosing ancestor elements onto each section record.
const (
	FieldTitleNumber   = "titleNumber"
	FieldTitleName     = "titleName"
	FieldChapterNumber = "chapterNumber"
	FieldChapterName   = "chapterName"
	FieldSectionNumber = "sectionNumber"
	FieldHeading       = "heading"
	FieldContentText   = "contentText"
	FieldSourceCredit  = "sourceCredit"
)

var (
	// Extracts the title number from an identifier: /us/usc/t5/s101 -> 5.
	uslmTitlePattern = regexp.MustCompile(`/us/usc/t(\d+)`)
	// Strips the section symbol: "§ 101" -> "101".
	uslmSectionNumPattern = regexp.MustCompile(`§\s*([\w\-]+)`)
	// Strips the "CHAPTER" prefix: "CHAPTER 1" -> "1".
	uslmChapterPrefix = regexp.MustCompile(`(?i)chapter\s*`)
)

// UslmParser is a streaming parser for USLM (United States Legislative Markup)
// XML. US Code title files run to 50-100MB, so sections are decoded one at a
// time; memory stays proportional to the open element path plus one section.
type UslmParser struct {
	logger *zap.Logger
}

// NewUslmParser creates a USLM stream parser.
func NewUslmParser(logger *zap.Logger) *UslmParser {
	return &UslmParser{logger: logger.Named("uslm-parser")}
}

// Parse returns a lazy stream of section records over the byte stream.
// encoding/xml never resolves external entities or fetches DTDs; the decoder
// runs strict so malformed input is a terminal parse error.
func (p *UslmParser) Parse(r io.Reader) RecordStream {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	return &uslmStream{dec: dec, logger: p.logger}
}

type uslmStream struct {
	dec    *xml.Decoder
	logger *zap.Logger
	err    error
	count  int

	inTitle   bool
	inChapter bool
	inSection bool

	titleNum    string
	titleName   string
	chapterNum  string
	chapterName string

	sectionID     string
	sectionNum    string
	sectionHead   string
	sectionText   string
	sectionCredit string
}

// Next returns the next section record, io.EOF at the end of the document, or
// a terminal ParseFatal error.
func (s *uslmStream) Next() (*ImportRecord, error) {
	if s.err != nil {
		return nil, s.err
	}

	for {
		tok, err := s.dec.Token()
		if err == io.EOF {
			s.err = io.EOF
			s.logger.Debug("USLM parse complete", zap.Int("sections", s.count))
			return nil, io.EOF
		}
		if err != nil {
			s.err = parseFatal(fmt.Errorf("malformed USLM XML: %w", err))
			return nil, s.err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := s.handleStart(t); err != nil {
				s.err = parseFatal(err)
				return nil, s.err
			}
		case xml.EndElement:
			if rec := s.handleEnd(t); rec != nil {
				return rec, nil
			}
		}
	}
}

func (s *uslmStream) handleStart(start xml.StartElement) error {
	switch start.Name.Local {
	case "title":
		s.inTitle = true
		s.titleNum, s.titleName = "", ""

	case "chapter":
		s.inChapter = true
		s.chapterNum, s.chapterName = "", ""

	case "section":
		s.inSection = true
		s.sectionID = attrValue(start, "identifier")
		s.sectionNum, s.sectionHead, s.sectionText, s.sectionCredit = "", "", "", ""

	case "num":
		text, err := s.readText(start)
		if err != nil {
			return err
		}
		switch {
		case s.inSection:
			if s.sectionNum == "" {
				s.sectionNum = text
			}
		case s.inChapter:
			if s.chapterNum == "" {
				s.chapterNum = text
			}
		case s.inTitle:
			if s.titleNum == "" {
				s.titleNum = text
			}
		}

	case "heading":
		text, err := s.readText(start)
		if err != nil {
			return err
		}
		switch {
		case s.inSection:
			if s.sectionHead == "" {
				s.sectionHead = text
			}
		case s.inChapter:
			// Only the first heading at chapter level counts; later headings
			// belong to notes and amendments.
			if s.chapterName == "" {
				s.chapterName = text
			}
		case s.inTitle:
			if s.titleName == "" {
				s.titleName = text
			}
		}

	case "content":
		if s.inSection {
			text, err := s.readText(start)
			if err != nil {
				return err
			}
			if s.sectionText == "" {
				s.sectionText = text
			} else {
				s.sectionText += " " + text
			}
		}

	case "sourceCredit":
		if s.inSection {
			text, err := s.readText(start)
			if err != nil {
				return err
			}
			s.sectionCredit = text
		}
	}
	return nil
}

func (s *uslmStream) handleEnd(end xml.EndElement) *ImportRecord {
	switch end.Name.Local {
	case "title":
		s.inTitle = false
		s.titleNum, s.titleName = "", ""
	case "chapter":
		s.inChapter = false
		s.chapterNum, s.chapterName = "", ""
	case "section":
		if !s.inSection {
			return nil
		}
		s.inSection = false
		if s.sectionID == "" {
			return nil
		}
		s.count++
		return s.buildRecord()
	}
	return nil
}

// readText consumes the element opened by start and returns its flattened
// text content: character data of the element and all nested elements, with
// whitespace collapsed to single spaces.
func (s *uslmStream) readText(start xml.StartElement) (string, error) {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := s.dec.Token()
		if err != nil {
			return "", fmt.Errorf("unterminated <%s> element: %w", start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			sb.Write(t)
			sb.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " "), nil
}

func (s *uslmStream) buildRecord() *ImportRecord {
	titleNumber := ""
	if m := uslmTitlePattern.FindStringSubmatch(s.sectionID); m != nil {
		titleNumber = m[1]
	}

	sectionNumber := strings.TrimSpace(s.sectionNum)
	if m := uslmSectionNumPattern.FindStringSubmatch(s.sectionNum); m != nil {
		sectionNumber = m[1]
	}

	return &ImportRecord{
		ExternalID: s.sectionID,
		Fields: map[string]string{
			FieldTitleNumber:   titleNumber,
			FieldTitleName:     s.titleName,
			FieldChapterNumber: strings.TrimSpace(uslmChapterPrefix.ReplaceAllString(s.chapterNum, "")),
			FieldChapterName:   s.chapterName,
			FieldSectionNumber: sectionNumber,
			FieldHeading:       s.sectionHead,
			FieldContentText:   s.sectionText,
			FieldSourceCredit:  s.sectionCredit,
		},
	}
}

func attrValue(start xml.StartElement, name string) string {
	for _, attr := range start.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}
