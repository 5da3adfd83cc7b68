package store

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"jch-go/internal/history"
)

const xmlHeader = "<?xml version='1.0' encoding='UTF-8'?>\n"

// descriptor is the on-disk metadata of a record. The element names match
// the XStream serialization written by the Jenkins plugin, so existing
// history directories stay readable.
type descriptor struct {
	XMLName   xml.Name `xml:"hudson.plugins.jobConfigHistory.HistoryDescr"`
	User      string   `xml:"user"`
	UserID    string   `xml:"userId"`
	Operation string   `xml:"operation"`
	Timestamp string   `xml:"timestamp"`
}

// EncodeDescriptor renders the history.xml descriptor of rec.
func EncodeDescriptor(rec *history.Record) ([]byte, error) {
	d := descriptor{
		User:      rec.User,
		UserID:    rec.UserID,
		Operation: string(rec.Operation),
		Timestamp: rec.Timestamp,
	}

	body, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding history descriptor: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	buf.Write(body)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func decodeDescriptor(data []byte) (*descriptor, error) {
	var d descriptor
	if err := xml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding history descriptor: %w", err)
	}
	return &d, nil
}
