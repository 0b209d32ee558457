package geonetwork

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/beevik/etree"

	"github.com/ecospheres/isomorphe/pkg/xmlutil"
)

// MefArchive accumulates records into a MEF zip archive, the catalog's bulk
// import/export format.
type MefArchive struct {
	buf *bytes.Buffer
	zw  *zip.Writer
}

func NewMefArchive() *MefArchive {
	buf := &bytes.Buffer{}

	return &MefArchive{buf: buf, zw: zip.NewWriter(buf)}
}

// Add appends one record, with `info` in MEF info.xml format.
func (m *MefArchive) Add(uuid, record, info string) error {
	w, err := m.zw.Create(uuid + "/info.xml")
	if err != nil {
		return err
	}

	if _, err := w.Write([]byte(info)); err != nil {
		return err
	}

	w, err = m.zw.Create(uuid + "/metadata/metadata.xml")
	if err != nil {
		return err
	}

	_, err = w.Write([]byte(record))

	return err
}

// Finalize closes the archive and returns its bytes.
func (m *MefArchive) Finalize() ([]byte, error) {
	if err := m.zw.Close(); err != nil {
		return nil, err
	}

	return m.buf.Bytes(), nil
}

// ExtractRecordInfo removes the `geonet:info` block from a record document and
// renders it in MEF info.xml format. The record document is modified in place;
// callers serialize it afterwards to get the clean record body.
func ExtractRecordInfo(doc *etree.Document, sources map[string]string) (string, error) {
	root := doc.Root()
	if root == nil {
		return "", fmt.Errorf("record has no root element")
	}

	var ri *etree.Element

	for _, child := range root.ChildElements() {
		if child.Tag == "info" && child.Space == "geonet" {
			ri = child

			break
		}
	}

	if ri == nil {
		return "", fmt.Errorf("record has no geonet:info element")
	}

	root.RemoveChild(ri)

	field := func(name string) string {
		if el := ri.FindElement(name); el != nil {
			return el.Text()
		}

		return ""
	}

	sourceID := field("source")

	info := etree.NewDocument()
	info.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	infoEl := info.CreateElement("info")
	infoEl.CreateAttr("version", "1.1")

	general := infoEl.CreateElement("general")
	for _, f := range []struct{ tag, value string }{
		{"createDate", field("createDate")},
		{"changeDate", field("changeDate")},
		{"schema", field("schema")},
		{"isTemplate", field("isTemplate")},
		{"localId", field("id")},
		{"format", "simple"},
		{"rating", field("rating")},
		{"popularity", field("popularity")},
		{"uuid", field("uuid")},
		{"siteId", sourceID},
		{"siteName", sources[sourceID]},
	} {
		general.CreateElement(f.tag).SetText(f.value)
	}

	infoEl.CreateElement("categories")
	infoEl.CreateElement("privileges")
	infoEl.CreateElement("public")
	infoEl.CreateElement("private")

	return xmlutil.CanonicalizeDocument(info)
}
