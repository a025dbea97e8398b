package importer

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const govmanSample = `<?xml version="1.0" encoding="UTF-8"?>
<GovernmentManual>
  <Entities>
    <Entity EntityId="100" ParentId="0" SortOrder="1">
      <AgencyName>Department of Examples</AgencyName>
      <EntityType>Department</EntityType>
      <Category>Executive</Category>
      <MissionStatement>
        <Record>
          <Paragraph>Serve the public.</Paragraph>
        </Record>
        <Record>
          <Paragraph>  Maintain examples.  </Paragraph>
        </Record>
      </MissionStatement>
      <Addresses>
        <Address>
          <FooterDetails>
            <WebAddress>  </WebAddress>
          </FooterDetails>
        </Address>
        <Address>
          <FooterDetails>
            <WebAddress>https://examples.gov</WebAddress>
          </FooterDetails>
        </Address>
      </Addresses>
    </Entity>
    <Entity EntityId="101" ParentId="100" SortOrder="2">
      <AgencyName>  Office of Trimming  </AgencyName>
    </Entity>
  </Entities>
</GovernmentManual>`

func drainAll(t *testing.T, stream RecordStream) []*ImportRecord {
	t.Helper()
	records, err := Drain(stream)
	require.NoError(t, err)
	return records
}

func TestGovmanParser_ParsesEntities(t *testing.T) {
	parser := NewGovmanParser(zap.NewNop())
	records := drainAll(t, parser.Parse(strings.NewReader(govmanSample)))
	require.Len(t, records, 2)

	dept := records[0]
	assert.Equal(t, "100", dept.ExternalID)
	assert.Equal(t, "0", dept.ParentExternalID)
	assert.False(t, dept.HasParent())
	assert.Equal(t, 1, dept.SortOrder)
	assert.Equal(t, "Department of Examples", dept.Field(FieldAgencyName))
	assert.Equal(t, "Department", dept.Field(FieldEntityType))
	assert.Equal(t, "Executive", dept.Field(FieldCategory))

	office := records[1]
	assert.Equal(t, "101", office.ExternalID)
	assert.Equal(t, "100", office.ParentExternalID)
	assert.True(t, office.HasParent())
	assert.Equal(t, "Office of Trimming", office.Field(FieldAgencyName))
}

func TestGovmanParser_MissionParagraphsJoined(t *testing.T) {
	parser := NewGovmanParser(zap.NewNop())
	records := drainAll(t, parser.Parse(strings.NewReader(govmanSample)))

	assert.Equal(t, "Serve the public.\n\nMaintain examples.",
		records[0].Field(FieldMissionStatement))
}

func TestGovmanParser_FirstNonBlankWebAddress(t *testing.T) {
	parser := NewGovmanParser(zap.NewNop())
	records := drainAll(t, parser.Parse(strings.NewReader(govmanSample)))

	assert.Equal(t, "https://examples.gov", records[0].Field(FieldWebAddress))
}

func TestGovmanParser_AbsentFieldsPresentAsEmpty(t *testing.T) {
	parser := NewGovmanParser(zap.NewNop())
	records := drainAll(t, parser.Parse(strings.NewReader(govmanSample)))

	office := records[1]
	for _, field := range []string{
		FieldEntityType, FieldCategory, FieldMissionStatement, FieldWebAddress,
	} {
		val, ok := office.Fields[field]
		assert.True(t, ok, "field %s should be present", field)
		assert.Empty(t, val)
	}
}

func TestGovmanParser_MalformedXMLIsTerminal(t *testing.T) {
	parser := NewGovmanParser(zap.NewNop())
	stream := parser.Parse(strings.NewReader(`<Entities><Entity EntityId="1">`))

	rec, err := stream.Next()
	require.Error(t, err)
	assert.Nil(t, rec)

	var impErr *Error
	require.ErrorAs(t, err, &impErr)
	assert.Equal(t, KindParseFatal, impErr.Kind)
	assert.True(t, impErr.Fatal())

	// The stream stays in its error state.
	_, again := stream.Next()
	assert.Equal(t, err, again)
}

func TestGovmanParser_EOFIsSticky(t *testing.T) {
	parser := NewGovmanParser(zap.NewNop())
	stream := parser.Parse(strings.NewReader(govmanSample))

	_, err := Drain(stream)
	require.NoError(t, err)

	_, err = stream.Next()
	assert.True(t, errors.Is(err, io.EOF))
	_, err = stream.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestGovmanParser_EmptyDocument(t *testing.T) {
	parser := NewGovmanParser(zap.NewNop())
	records := drainAll(t, parser.Parse(strings.NewReader(`<GovernmentManual><Entities/></GovernmentManual>`)))
	assert.Empty(t, records)
}
