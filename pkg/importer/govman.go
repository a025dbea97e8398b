package importer

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Field names produced by the GOVMAN parser. Every record carries all of them;
// elements absent from the source yield empty strings.
const (
	FieldEntityType       = "EntityType"
	FieldCategory         = "Category"
	FieldAgencyName       = "AgencyName"
	FieldMissionStatement = "MissionStatement"
	FieldWebAddress       = "WebAddress"
)

// govmanEntity mirrors one Entity element of the Government Manual XML.
// Decoded one element at a time so memory stays proportional to a single
// entity, not the document.
type govmanEntity struct {
	EntityID   string `xml:"EntityId,attr"`
	ParentID   string `xml:"ParentId,attr"`
	SortOrder  string `xml:"SortOrder,attr"`
	EntityType string `xml:"EntityType"`
	Category   string `xml:"Category"`
	AgencyName string `xml:"AgencyName"`
	Addresses  struct {
		Address []struct {
			FooterDetails struct {
				WebAddress string `xml:"WebAddress"`
			} `xml:"FooterDetails"`
		} `xml:"Address"`
	} `xml:"Addresses"`
	MissionStatement struct {
		Records []struct {
			Paragraph string `xml:"Paragraph"`
		} `xml:"Record"`
	} `xml:"MissionStatement"`
}

// webAddress returns the first non-blank web address from the nested
// Addresses structure.
func (e *govmanEntity) webAddress() string {
	for _, addr := range e.Addresses.Address {
		if web := strings.TrimSpace(addr.FooterDetails.WebAddress); web != "" {
			return web
		}
	}
	return ""
}

// missionText joins the mission-statement paragraphs with double newlines,
// preserving source order.
func (e *govmanEntity) missionText() string {
	var paragraphs []string
	for _, rec := range e.MissionStatement.Records {
		if p := strings.TrimSpace(rec.Paragraph); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

// GovmanParser parses Government Manual XML exports into ImportRecords.
type GovmanParser struct {
	logger *zap.Logger
}

// NewGovmanParser creates a GOVMAN stream parser.
func NewGovmanParser(logger *zap.Logger) *GovmanParser {
	return &GovmanParser{logger: logger.Named("govman-parser")}
}

// Parse returns a lazy record stream over the byte stream. The stream is
// finite and not restartable. encoding/xml never fetches external entities or
// DTDs, which this pipeline relies on; the decoder is additionally set to
// strict mode so malformed input fails the parse rather than limping on.
func (p *GovmanParser) Parse(r io.Reader) RecordStream {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	return &govmanStream{dec: dec, logger: p.logger}
}

type govmanStream struct {
	dec    *xml.Decoder
	logger *zap.Logger
	err    error
	count  int
}

// Next returns the next entity record, io.EOF at the end of the document, or
// a terminal ParseFatal error. After an error the stream stays failed.
func (s *govmanStream) Next() (*ImportRecord, error) {
	if s.err != nil {
		return nil, s.err
	}

	for {
		tok, err := s.dec.Token()
		if err == io.EOF {
			s.err = io.EOF
			s.logger.Debug("GOVMAN parse complete", zap.Int("entities", s.count))
			return nil, io.EOF
		}
		if err != nil {
			s.err = parseFatal(fmt.Errorf("malformed GOVMAN XML: %w", err))
			return nil, s.err
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Entity" {
			continue
		}

		var entity govmanEntity
		if err := s.dec.DecodeElement(&entity, &start); err != nil {
			s.err = parseFatal(fmt.Errorf("malformed Entity element: %w", err))
			return nil, s.err
		}

		s.count++
		return govmanRecord(&entity), nil
	}
}

func govmanRecord(e *govmanEntity) *ImportRecord {
	sortOrder, _ := strconv.Atoi(strings.TrimSpace(e.SortOrder))
	return &ImportRecord{
		ExternalID:       strings.TrimSpace(e.EntityID),
		ParentExternalID: strings.TrimSpace(e.ParentID),
		SortOrder:        sortOrder,
		Fields: map[string]string{
			FieldEntityType:       strings.TrimSpace(e.EntityType),
			FieldCategory:         strings.TrimSpace(e.Category),
			FieldAgencyName:       strings.TrimSpace(e.AgencyName),
			FieldMissionStatement: e.missionText(),
			FieldWebAddress:       e.webAddress(),
		},
	}
}
