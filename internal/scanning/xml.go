package scanning

import (
	"bytes"
	"encoding/xml"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/anstrom/scanexport/internal/errors"
)

// Decode parses one scanner report. It fails with a *errors.SchemaError when
// the text is not well-formed XML, the root element is not <nmaprun>, or a
// mandatory field is missing. Optional fields never cause a failure.
func Decode(data []byte) (*Scan, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.ErrMalformed(io.ErrUnexpectedEOF)
	}

	var scan Scan
	d := xml.NewDecoder(bytes.NewReader(data))
	if err := d.Decode(&scan); err != nil {
		return nil, errors.ErrMalformed(err)
	}
	if err := checkTrailing(d); err != nil {
		return nil, errors.ErrMalformed(err)
	}

	if err := validate(&scan); err != nil {
		return nil, err
	}

	return &scan, nil
}

// checkTrailing consumes the rest of the document. Only whitespace, comments
// and processing instructions may follow the root element.
func checkTrailing(d *xml.Decoder) error {
	for {
		tok, err := d.Token()
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return fmt.Errorf("unexpected element <%s> after root element", t.Name.Local)
		case xml.EndElement:
			return fmt.Errorf("unexpected end element </%s> after root element", t.Name.Local)
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return fmt.Errorf("unexpected text after root element")
			}
		}
	}
}

// DecodeReader reads r to the end and decodes the result. Read failures are
// returned as *errors.SourceError.
func DecodeReader(r io.Reader) (*Scan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.ErrSourceRead("", err)
	}
	return Decode(data)
}

// Encode writes scan to w as an indented <nmaprun> document. Only the fields
// held by the model are written, so encoding a decoded report produces its
// canonical form.
func Encode(w io.Writer, scan *Scan) error {
	if scan == nil {
		return fmt.Errorf("cannot encode nil scan")
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return errors.ErrSinkWrite("", err)
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(scan); err != nil {
		return errors.ErrSinkWrite("", err)
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return errors.ErrSinkWrite("", err)
	}
	return nil
}

func validate(scan *Scan) error {
	if len(scan.Scaninfo) == 0 {
		return errors.ErrMissingField("scaninfo")
	}
	if scan.Verbose == nil {
		return errors.ErrMissingField("verbose")
	}
	if scan.Debugging == nil {
		return errors.ErrMissingField("debugging")
	}

	for i := range scan.Hosts {
		host := &scan.Hosts[i]
		if host.Address.Addr == "" {
			return errors.ErrMissingField(fmt.Sprintf("host[%d].address.addr", i))
		}
		if host.Address.AddrType == "" {
			return errors.ErrMissingField(fmt.Sprintf("host[%d].address.addrtype", i))
		}
		if len(host.Ports) == 0 {
			return errors.ErrMissingField(fmt.Sprintf("host[%d].ports", i))
		}
	}

	return nil
}

// hostXML is the document layout of <host>. Host keeps the first address
// apart from the others, which the element list cannot express directly.
type hostXML struct {
	Status        *Status        `xml:"status,omitempty"`
	Addresses     []Address      `xml:"address"`
	Hostnames     Hostnames      `xml:"hostnames"`
	Ports         []Ports        `xml:"ports"`
	Os            *Os            `xml:"os,omitempty"`
	Uptime        *Uptime        `xml:"uptime,omitempty"`
	Tcpsequence   *Tcpsequence   `xml:"tcpsequence,omitempty"`
	Ipidsequence  *Ipidsequence  `xml:"ipidsequence,omitempty"`
	Tcptssequence *Tcptssequence `xml:"tcptssequence,omitempty"`
	Times         *Times         `xml:"times,omitempty"`
}

// UnmarshalXML implements xml.Unmarshaler.
func (h *Host) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var w hostXML
	if err := d.DecodeElement(&w, &start); err != nil {
		return err
	}

	*h = Host{
		Status:        w.Status,
		Hostnames:     w.Hostnames,
		Ports:         w.Ports,
		Os:            w.Os,
		Uptime:        w.Uptime,
		Tcpsequence:   w.Tcpsequence,
		Ipidsequence:  w.Ipidsequence,
		Tcptssequence: w.Tcptssequence,
		Times:         w.Times,
	}
	if len(w.Addresses) > 0 {
		h.Address = w.Addresses[0]
	}
	if len(w.Addresses) > 1 {
		h.ExtraAddresses = w.Addresses[1:]
	}
	return nil
}

// MarshalXML implements xml.Marshaler.
func (h Host) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	addresses := make([]Address, 0, 1+len(h.ExtraAddresses))
	addresses = append(addresses, h.Address)
	addresses = append(addresses, h.ExtraAddresses...)

	return e.EncodeElement(hostXML{
		Status:        h.Status,
		Addresses:     addresses,
		Hostnames:     h.Hostnames,
		Ports:         h.Ports,
		Os:            h.Os,
		Uptime:        h.Uptime,
		Tcpsequence:   h.Tcpsequence,
		Ipidsequence:  h.Ipidsequence,
		Tcptssequence: h.Tcptssequence,
		Times:         h.Times,
	}, start)
}

type hostnamesXML struct {
	Hostname []Hostname `xml:"hostname"`
}

// UnmarshalXML implements xml.Unmarshaler.
func (h *Hostnames) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var w hostnamesXML
	if err := d.DecodeElement(&w, &start); err != nil {
		return err
	}

	*h = Hostnames{}
	if len(w.Hostname) > 0 {
		first := w.Hostname[0]
		h.Hostname = &first
	}
	if len(w.Hostname) > 1 {
		h.Additional = w.Hostname[1:]
	}
	return nil
}

// MarshalXML implements xml.Marshaler.
func (h Hostnames) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	var w hostnamesXML
	if h.Hostname != nil {
		w.Hostname = append(w.Hostname, *h.Hostname)
	}
	w.Hostname = append(w.Hostname, h.Additional...)
	return e.EncodeElement(w, start)
}
