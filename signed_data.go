package cms

import (
	"crypto/x509"
	"encoding/asn1"

	"github.com/strandsec/cms/protocol"
)

// NewSignedData creates a SignedData with the data encapsulated as id-data
// content. Nil data starts a detached message whose content is never
// embedded.
func NewSignedData(data []byte) (*SignedData, error) {
	eci, err := protocol.NewDataEncapsulatedContentInfo(data)
	if err != nil {
		return nil, err
	}

	psd, err := protocol.NewSignedData(eci)
	if err != nil {
		return nil, err
	}

	return &SignedData{psd: *psd}, nil
}

// ParseSignedData parses a SignedData from DER encoded data.
func ParseSignedData(der []byte) (*SignedData, error) {
	ci, err := protocol.ParseContentInfo(der)
	if err != nil {
		return nil, err
	}

	psd, err := ci.SignedDataContent()
	if err != nil {
		return nil, err
	}

	return &SignedData{psd: *psd}, nil
}

// GetData gets the encapsulated data from the SignedData. Nil will be
// returned if this is a detached signature. A protocol.ErrWrongType will be
// returned if the SignedData encapsulates something other than data
// (1.2.840.113549.1.7.1).
func (sd *SignedData) GetData() ([]byte, error) {
	return sd.psd.EncapContentInfo.DataEContent()
}

// GetCertificates gets all the certificates stored in the SignedData.
func (sd *SignedData) GetCertificates() ([]*x509.Certificate, error) {
	return sd.psd.X509Certificates()
}

// SetCertificates replaces the certificates stored in the SignedData with
// new ones.
func (sd *SignedData) SetCertificates(certs []*x509.Certificate) error {
	sd.psd.ClearCertificates()

	for _, cert := range certs {
		if err := sd.psd.AddCertificate(cert); err != nil {
			return err
		}
	}

	return nil
}

// IsDetached reports whether the message content is distributed separately
// from the signature.
func (sd *SignedData) IsDetached() bool {
	return sd.psd.EncapContentInfo.EContent.Bytes == nil
}

// Detached removes the content from the SignedData so the message can be
// distributed separately from the signature.
func (sd *SignedData) Detached() {
	sd.psd.EncapContentInfo.EContent = asn1.RawValue{}
}

// ToDER encodes the SignedData, wrapped in a ContentInfo.
func (sd *SignedData) ToDER() ([]byte, error) {
	return sd.psd.ContentInfoDER()
}
