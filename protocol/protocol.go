// Package protocol implements low level CMS types, parsing and generation.
package protocol

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"sort"
	"time"

	"golang.org/x/xerrors"

	"github.com/strandsec/cms/oid"
)

// ASN1Error is an error from parsing ASN.1 structures.
type ASN1Error struct {
	Message string
}

// Error implements the error interface.
func (err ASN1Error) Error() string {
	return fmt.Sprintf("cms/protocol: ASN.1 error: %s", err.Message)
}

var (
	// ErrWrongType is returned by methods that make assumptions about types.
	// Helper methods are defined for accessing CHOICE and ANY fields. These
	// helper methods get the value of the field, assuming it is of a given
	// type. This error is returned if that assumption is wrong and the field
	// has a different type.
	ErrWrongType = ASN1Error{"wrong choice or any type"}

	// ErrTrailingData is returned when extra data is found after an ASN.1
	// structure.
	ErrTrailingData = ASN1Error{"unexpected trailing data"}

	// ErrUnsupported is returned when the encoding uses a type or version
	// that's recognized but not implemented, such as CertificateChoices
	// other than plain certificates.
	ErrUnsupported = ASN1Error{"unsupported type or version"}

	// ErrNoCertificates is returned when resolving a SignerInfo's
	// certificate from an empty certificate set.
	ErrNoCertificates = xerrors.New("cms/protocol: no certificates")

	// ErrCertificateNotFound is returned when none of the available
	// certificates match a SignerInfo's SID.
	ErrCertificateNotFound = xerrors.New("cms/protocol: no matching certificate")

	// ErrInvalidAttribute is returned when an attribute set is built from bad
	// input: attributes owned by the builder, contradictory options or empty
	// value sets.
	ErrInvalidAttribute = xerrors.New("cms/protocol: invalid attribute")
)

// ContentInfo ::= SEQUENCE {
//   contentType ContentType,
//   content [0] EXPLICIT ANY DEFINED BY contentType }
//
// ContentType ::= OBJECT IDENTIFIER
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,tag:0"`
}

// ParseContentInfo parses a top-level ContentInfo type from DER encoded data.
// BER features such as indefinite lengths are rejected by the decoder.
func ParseContentInfo(der []byte) (ci ContentInfo, err error) {
	var rest []byte
	if rest, err = asn1.Unmarshal(der, &ci); err != nil {
		return
	}
	if len(rest) > 0 {
		err = ErrTrailingData
	}

	return
}

// SignedDataContent gets the content assuming contentType is signedData.
func (ci ContentInfo) SignedDataContent() (*SignedData, error) {
	if !ci.ContentType.Equal(oid.ContentTypeSignedData) {
		return nil, ErrWrongType
	}

	sd := new(SignedData)
	if rest, err := asn1.Unmarshal(ci.Content.Bytes, sd); err != nil {
		return nil, err
	} else if len(rest) > 0 {
		return nil, ErrTrailingData
	}

	return sd, nil
}

// EncapsulatedContentInfo ::= SEQUENCE {
//   eContentType ContentType,
//   eContent [0] EXPLICIT OCTET STRING OPTIONAL }
//
// ContentType ::= OBJECT IDENTIFIER
type EncapsulatedContentInfo struct {
	EContentType asn1.ObjectIdentifier
	EContent     asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

// NewEncapsulatedContentInfo creates a new EncapsulatedContentInfo with the
// given content type. A nil content leaves eContent absent, for messages
// whose content is distributed separately.
func NewEncapsulatedContentInfo(contentType asn1.ObjectIdentifier, content []byte) (EncapsulatedContentInfo, error) {
	if content == nil {
		return EncapsulatedContentInfo{EContentType: contentType}, nil
	}

	octets, err := asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassUniversal,
		Tag:        asn1.TagOctetString,
		Bytes:      content,
		IsCompound: false,
	})
	if err != nil {
		return EncapsulatedContentInfo{}, err
	}

	return EncapsulatedContentInfo{
		EContentType: contentType,
		EContent: asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			Bytes:      octets,
			IsCompound: true,
		},
	}, nil
}

// NewDataEncapsulatedContentInfo creates a new EncapsulatedContentInfo with
// the id-data content type.
func NewDataEncapsulatedContentInfo(data []byte) (EncapsulatedContentInfo, error) {
	return NewEncapsulatedContentInfo(oid.ContentTypeData, data)
}

// EContentValue gets the OCTET STRING EContent value without tag or length.
// This is what the message digest is computed over. A nil byte slice is
// returned if the OPTIONAL eContent is missing.
func (eci EncapsulatedContentInfo) EContentValue() ([]byte, error) {
	if eci.EContent.Bytes == nil {
		return nil, nil
	}

	var octets asn1.RawValue
	if rest, err := asn1.Unmarshal(eci.EContent.Bytes, &octets); err != nil {
		return nil, err
	} else if len(rest) > 0 {
		return nil, ErrTrailingData
	}
	if octets.Class != asn1.ClassUniversal || octets.Tag != asn1.TagOctetString {
		return nil, ErrWrongType
	}

	if !octets.IsCompound {
		return octets.Bytes, nil
	}

	// Non-DER producers may split the OCTET STRING into segments. The value
	// is their concatenation.
	var value []byte
	segments := octets.Bytes
	for len(segments) > 0 {
		var segment asn1.RawValue
		var err error
		if segments, err = asn1.Unmarshal(segments, &segment); err != nil {
			return nil, err
		}
		if segment.Class != asn1.ClassUniversal || segment.Tag != asn1.TagOctetString || segment.IsCompound {
			return nil, ErrWrongType
		}

		value = append(value, segment.Bytes...)
	}

	return value, nil
}

// DataEContent gets the EContent assuming EContentType is id-data.
func (eci EncapsulatedContentInfo) DataEContent() ([]byte, error) {
	if !eci.EContentType.Equal(oid.ContentTypeData) {
		return nil, ErrWrongType
	}

	return eci.EContentValue()
}

// IsTypeData checks if the EContentType is id-data.
func (eci EncapsulatedContentInfo) IsTypeData() bool {
	return eci.EContentType.Equal(oid.ContentTypeData)
}

// Attribute ::= SEQUENCE {
//   attrType OBJECT IDENTIFIER,
//   attrValues SET OF AttributeValue }
//
// AttributeValue ::= ANY
type Attribute struct {
	Type asn1.ObjectIdentifier

	// This should be a SET OF ANY, but Go's asn1 parser can't handle slices
	// of RawValues. Use Value() to get an AnySet of the value.
	RawValue asn1.RawValue
}

// NewAttribute creates a single-value Attribute.
func NewAttribute(attrType asn1.ObjectIdentifier, val interface{}) (attr Attribute, err error) {
	var der []byte
	if der, err = asn1.Marshal(val); err != nil {
		return
	}

	var rv asn1.RawValue
	if _, err = asn1.Unmarshal(der, &rv); err != nil {
		return
	}

	if err = NewAnySet(rv).Encode(&attr.RawValue); err != nil {
		return
	}

	attr.Type = attrType

	return
}

// Value further decodes the attribute value as a SET OF ANY, which Go's asn1
// parser can't handle directly.
func (a Attribute) Value() (AnySet, error) {
	return DecodeAnySet(a.RawValue)
}

// Attributes is a SET OF Attribute. The wire order of parsed attributes is
// preserved so that re-encoding a third party message reproduces its bytes.
// MarshaledForSigning applies the canonical SET OF order that signatures are
// computed over; builders emit attributes in that same order.
type Attributes []Attribute

// Add adds a single-value attribute to the set, merging the value into an
// existing attribute if one with the same type is already present.
func (attrs *Attributes) Add(attrType asn1.ObjectIdentifier, val interface{}) error {
	attr, err := NewAttribute(attrType, val)
	if err != nil {
		return err
	}

	return attrs.AddAttribute(attr)
}

// AddAttribute adds an attribute to the set. Values for a type that's already
// present are merged into the existing attribute, keeping the merged value
// set in canonical order.
func (attrs *Attributes) AddAttribute(attr Attribute) error {
	vals, err := attr.Value()
	if err != nil {
		return err
	}
	if len(vals.Elements) == 0 {
		return xerrors.Errorf("cms/protocol: attribute %v has no values: %w", attr.Type, ErrInvalidAttribute)
	}

	for i := range *attrs {
		if !(*attrs)[i].Type.Equal(attr.Type) {
			continue
		}

		existing, err := (*attrs)[i].Value()
		if err != nil {
			return err
		}

		merged, err := sortedValues(append(existing.Elements, vals.Elements...))
		if err != nil {
			return err
		}

		var rv asn1.RawValue
		if err = NewAnySet(merged...).Encode(&rv); err != nil {
			return err
		}
		(*attrs)[i].RawValue = rv

		return nil
	}

	*attrs = append(*attrs, attr)

	return nil
}

// sortedValues normalizes attribute values into the canonical SET OF order.
func sortedValues(elements []asn1.RawValue) ([]asn1.RawValue, error) {
	ders := make([][]byte, 0, len(elements))
	for _, element := range elements {
		der, err := asn1.Marshal(element)
		if err != nil {
			return nil, err
		}

		ders = append(ders, der)
	}

	sort.Slice(ders, func(i, j int) bool {
		return bytes.Compare(ders[i], ders[j]) < 0
	})

	sorted := make([]asn1.RawValue, len(ders))
	for i, der := range ders {
		if _, err := asn1.Unmarshal(der, &sorted[i]); err != nil {
			return nil, err
		}
	}

	return sorted, nil
}

// GetValues retrieves the values of all attributes with the given type. An
// empty slice is returned if no attributes are found.
func (attrs Attributes) GetValues(attrType asn1.ObjectIdentifier) ([]AnySet, error) {
	var vals []AnySet
	for _, attr := range attrs {
		if attr.Type.Equal(attrType) {
			val, err := attr.Value()
			if err != nil {
				return nil, err
			}

			vals = append(vals, val)
		}
	}

	return vals, nil
}

// GetOnlyAttributeValueBytes gets an attribute value, returning an error if
// the attribute occurs multiple times or has multiple values.
func (attrs Attributes) GetOnlyAttributeValueBytes(attrType asn1.ObjectIdentifier) (rv asn1.RawValue, err error) {
	var vals []AnySet
	if vals, err = attrs.GetValues(attrType); err != nil {
		return
	}
	if len(vals) != 1 {
		err = ASN1Error{"bad attribute count"}
		return
	}
	if len(vals[0].Elements) != 1 {
		err = ASN1Error{"bad attribute element count"}
		return
	}

	return vals[0].Elements[0], nil
}

// HasAttribute checks if an attribute with the given type is present.
func (attrs Attributes) HasAttribute(attrType asn1.ObjectIdentifier) bool {
	for _, attr := range attrs {
		if attr.Type.Equal(attrType) {
			return true
		}
	}

	return false
}

// MarshaledForSigning DER encodes the Attributes as they appear in a
// signature computation: an explicit universal SET with the elements in
// canonical order. The result is a pure function of the attribute multiset;
// insertion order never affects it.
func (attrs Attributes) MarshaledForSigning() ([]byte, error) {
	elements, err := attrs.marshaledElements()
	if err != nil {
		return nil, err
	}

	return asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassUniversal,
		Tag:        asn1.TagSet,
		Bytes:      bytes.Join(elements, nil),
		IsCompound: true,
	})
}

// marshaledElements DER encodes each attribute and sorts the encodings into
// the canonical SET OF order (X.690 11.6): lexicographic over the complete
// encoded bytes of each element, never the type OID alone.
func (attrs Attributes) marshaledElements() ([][]byte, error) {
	elements := make([][]byte, 0, len(attrs))
	for _, attr := range attrs {
		der, err := asn1.Marshal(attr)
		if err != nil {
			return nil, err
		}

		elements = append(elements, der)
	}

	sort.Slice(elements, func(i, j int) bool {
		return bytes.Compare(elements[i], elements[j]) < 0
	})

	return elements, nil
}

// sorted returns the attributes in canonical SET OF order, so that the wire
// encoding of built signedAttrs matches the bytes the signature covers.
func (attrs Attributes) sorted() (Attributes, error) {
	elements, err := attrs.marshaledElements()
	if err != nil {
		return nil, err
	}

	out := make(Attributes, len(elements))
	for i, der := range elements {
		if rest, err := asn1.Unmarshal(der, &out[i]); err != nil {
			return nil, err
		} else if len(rest) > 0 {
			return nil, ErrTrailingData
		}
	}

	return out, nil
}

// IssuerAndSerialNumber ::= SEQUENCE {
//   issuer Name,
//   serialNumber CertificateSerialNumber }
//
// CertificateSerialNumber ::= INTEGER
type IssuerAndSerialNumber struct {
	Issuer       asn1.RawValue
	SerialNumber *big.Int
}

// NewIssuerAndSerialNumber creates an IssuerAndSerialNumber SID for the given
// cert.
func NewIssuerAndSerialNumber(cert *x509.Certificate) (rv asn1.RawValue, err error) {
	sid := IssuerAndSerialNumber{
		SerialNumber: new(big.Int).Set(cert.SerialNumber),
	}

	if _, err = asn1.Unmarshal(cert.RawIssuer, &sid.Issuer); err != nil {
		return
	}

	var der []byte
	if der, err = asn1.Marshal(sid); err != nil {
		return
	}

	if _, err = asn1.Unmarshal(der, &rv); err != nil {
		return
	}

	return
}

// NewSubjectKeyIdentifier creates a subjectKeyIdentifier SID referencing the
// certificate's subject key identifier extension.
func NewSubjectKeyIdentifier(cert *x509.Certificate) (asn1.RawValue, error) {
	for _, ext := range cert.Extensions {
		if oid.ExtensionSubjectKeyIdentifier.Equal(ext.Id) {
			return asn1.RawValue{
				Class: asn1.ClassContextSpecific,
				Tag:   0,
				Bytes: ext.Value,
			}, nil
		}
	}

	return asn1.RawValue{}, xerrors.New("cms/protocol: certificate has no subject key identifier extension")
}

// SignerInfo ::= SEQUENCE {
//   version CMSVersion,
//   sid SignerIdentifier,
//   digestAlgorithm DigestAlgorithmIdentifier,
//   signedAttrs [0] IMPLICIT SignedAttributes OPTIONAL,
//   signatureAlgorithm SignatureAlgorithmIdentifier,
//   signature SignatureValue,
//   unsignedAttrs [1] IMPLICIT UnsignedAttributes OPTIONAL }
//
// CMSVersion ::= INTEGER
//               { v0(0), v1(1), v2(2), v3(3), v4(4), v5(5) }
//
// SignerIdentifier ::= CHOICE {
//   issuerAndSerialNumber IssuerAndSerialNumber,
//   subjectKeyIdentifier [0] SubjectKeyIdentifier }
//
// DigestAlgorithmIdentifier ::= AlgorithmIdentifier
//
// SignedAttributes ::= SET SIZE (1..MAX) OF Attribute
//
// SignatureAlgorithmIdentifier ::= AlgorithmIdentifier
//
// SignatureValue ::= OCTET STRING
//
// UnsignedAttributes ::= SET SIZE (1..MAX) OF Attribute
//
// SubjectKeyIdentifier ::= OCTET STRING
type SignerInfo struct {
	Version         int
	SID             asn1.RawValue
	DigestAlgorithm pkix.AlgorithmIdentifier

	// SignedAttrs and UnsignedAttrs omit the `set` flag so that wire order
	// survives a parse/re-encode round trip. Builders emit canonical order
	// themselves.
	SignedAttrs        Attributes `asn1:"optional,tag:0"`
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          []byte
	UnsignedAttrs      Attributes `asn1:"optional,tag:1"`
}

// FindCertificates finds all certificates matching this SignerInfo's SID.
// More than one match means the certificate set redundantly contains
// duplicates; callers use the first match and may surface the ambiguity as a
// diagnostic.
func (si SignerInfo) FindCertificates(certs []*x509.Certificate) ([]*x509.Certificate, error) {
	if len(certs) == 0 {
		return nil, ErrNoCertificates
	}

	var matches []*x509.Certificate

	switch si.Version {
	case 1: // SID is issuer and serial number
		isn, err := si.issuerAndSerialNumberSID()
		if err != nil {
			return nil, err
		}

		for _, cert := range certs {
			if bytes.Equal(cert.RawIssuer, isn.Issuer.FullBytes) && isn.SerialNumber.Cmp(cert.SerialNumber) == 0 {
				matches = append(matches, cert)
			}
		}

	case 3: // SID is SubjectKeyIdentifier
		ski, err := si.subjectKeyIdentifierSID()
		if err != nil {
			return nil, err
		}

		for _, cert := range certs {
			for _, ext := range cert.Extensions {
				if oid.ExtensionSubjectKeyIdentifier.Equal(ext.Id) && bytes.Equal(ski, ext.Value) {
					matches = append(matches, cert)
				}
			}
		}

	default:
		return nil, ErrUnsupported
	}

	if len(matches) == 0 {
		return nil, ErrCertificateNotFound
	}

	return matches, nil
}

// FindCertificate finds this SignerInfo's certificate, using the first match
// when the set redundantly contains more than one.
func (si SignerInfo) FindCertificate(certs []*x509.Certificate) (*x509.Certificate, error) {
	matches, err := si.FindCertificates(certs)
	if err != nil {
		return nil, err
	}

	return matches[0], nil
}

// issuerAndSerialNumberSID gets the SID, assuming it is a
// issuerAndSerialNumber.
func (si SignerInfo) issuerAndSerialNumberSID() (isn IssuerAndSerialNumber, err error) {
	if si.SID.Class != asn1.ClassUniversal || si.SID.Tag != asn1.TagSequence {
		err = ErrWrongType
		return
	}

	var rest []byte
	if rest, err = asn1.Unmarshal(si.SID.FullBytes, &isn); err == nil && len(rest) > 0 {
		err = ErrTrailingData
	}

	return
}

// subjectKeyIdentifierSID gets the SID, assuming it is a
// subjectKeyIdentifier.
func (si SignerInfo) subjectKeyIdentifierSID() ([]byte, error) {
	if si.SID.Class != asn1.ClassContextSpecific || si.SID.Tag != 0 {
		return nil, ErrWrongType
	}

	return si.SID.Bytes, nil
}

// Hash gets the crypto.Hash associated with this SignerInfo's
// DigestAlgorithm, failing closed on unsupported identifiers.
func (si SignerInfo) Hash() (crypto.Hash, error) {
	return oid.HashForDigestAlgorithm(si.DigestAlgorithm)
}

// X509SignatureAlgorithm gets the x509.SignatureAlgorithm used for verifying
// this SignerInfo's signature.
func (si SignerInfo) X509SignatureAlgorithm() (x509.SignatureAlgorithm, error) {
	return oid.X509SignatureAlgorithm(si.SignatureAlgorithm, si.DigestAlgorithm)
}

// GetContentTypeAttribute gets the signed ContentType attribute from the
// SignerInfo.
func (si SignerInfo) GetContentTypeAttribute() (asn1.ObjectIdentifier, error) {
	rv, err := si.SignedAttrs.GetOnlyAttributeValueBytes(oid.AttributeContentType)
	if err != nil {
		return nil, err
	}

	var ct asn1.ObjectIdentifier
	if rest, err := asn1.Unmarshal(rv.FullBytes, &ct); err != nil {
		return nil, err
	} else if len(rest) > 0 {
		return nil, ErrTrailingData
	}

	return ct, nil
}

// GetMessageDigestAttribute gets the signed MessageDigest attribute from the
// SignerInfo.
func (si SignerInfo) GetMessageDigestAttribute() ([]byte, error) {
	rv, err := si.SignedAttrs.GetOnlyAttributeValueBytes(oid.AttributeMessageDigest)
	if err != nil {
		return nil, err
	}
	if rv.Class != asn1.ClassUniversal || rv.Tag != asn1.TagOctetString {
		return nil, ErrWrongType
	}

	return rv.Bytes, nil
}

// GetSigningTimeAttribute gets the signed SigningTime attribute from the
// SignerInfo.
func (si SignerInfo) GetSigningTimeAttribute() (time.Time, error) {
	var t time.Time

	rv, err := si.SignedAttrs.GetOnlyAttributeValueBytes(oid.AttributeSigningTime)
	if err != nil {
		return t, err
	}
	if rv.Class != asn1.ClassUniversal || (rv.Tag != asn1.TagUTCTime && rv.Tag != asn1.TagGeneralizedTime) {
		return t, ErrWrongType
	}

	if rest, err := asn1.Unmarshal(rv.FullBytes, &t); err != nil {
		return t, err
	} else if len(rest) > 0 {
		return t, ErrTrailingData
	}

	return t, nil
}

// SignedData ::= SEQUENCE {
//   version CMSVersion,
//   digestAlgorithms DigestAlgorithmIdentifiers,
//   encapContentInfo EncapsulatedContentInfo,
//   certificates [0] IMPLICIT CertificateSet OPTIONAL,
//   crls [1] IMPLICIT RevocationInfoChoices OPTIONAL,
//   signerInfos SignerInfos }
//
// CMSVersion ::= INTEGER
//               { v0(0), v1(1), v2(2), v3(3), v4(4), v5(5) }
//
// DigestAlgorithmIdentifiers ::= SET OF DigestAlgorithmIdentifier
//
// CertificateSet ::= SET OF CertificateChoices
//
// CertificateChoices ::= CHOICE {
//   certificate Certificate,
//   extendedCertificate [0] IMPLICIT ExtendedCertificate, -- Obsolete
//   v1AttrCert [1] IMPLICIT AttributeCertificateV1,       -- Obsolete
//   v2AttrCert [2] IMPLICIT AttributeCertificateV2,
//   other [3] IMPLICIT OtherCertificateFormat }
//
// RevocationInfoChoices ::= SET OF RevocationInfoChoice
//
// SignerInfos ::= SET OF SignerInfo
type SignedData struct {
	Version          int
	DigestAlgorithms []pkix.AlgorithmIdentifier `asn1:"set"`
	EncapContentInfo EncapsulatedContentInfo

	// Certificates and CRLs omit the `set` flag so that third party messages
	// whose sets aren't canonically ordered survive a parse/re-encode round
	// trip. The [0]/[1] tag bytes are the same either way.
	Certificates []asn1.RawValue `asn1:"optional,tag:0"`
	CRLs         []asn1.RawValue `asn1:"optional,tag:1"`
	SignerInfos  []SignerInfo    `asn1:"set"`
}

// NewSignedData creates a new SignedData.
func NewSignedData(eci EncapsulatedContentInfo) (*SignedData, error) {
	// DigestAlgorithms and SignerInfos are empty SETs, not absent.
	sd := SignedData{
		EncapContentInfo: eci,
		DigestAlgorithms: []pkix.AlgorithmIdentifier{},
		SignerInfos:      []SignerInfo{},
	}

	sd.updateVersion()

	return &sd, nil
}

// SignerOption customizes a SignerInfo added by AddSignerInfo.
type SignerOption func(*signerConfig)

type signerConfig struct {
	hash          crypto.Hash
	digest        []byte
	noSignedAttrs bool
	useSKI        bool
	signingTime   time.Time
	signedAttrs   []Attribute
	unsignedAttrs []Attribute
}

// WithDigestAlgorithm overrides the digest algorithm used for the
// message-digest attribute and the signature. The default is SHA-256, or
// SHA-512 for Ed25519 keys.
func WithDigestAlgorithm(hash crypto.Hash) SignerOption {
	return func(cfg *signerConfig) { cfg.hash = hash }
}

// WithContentDigest supplies a precomputed digest of the content, for signing
// content that is distributed separately and isn't available to the builder.
func WithContentDigest(hash crypto.Hash, digest []byte) SignerOption {
	return func(cfg *signerConfig) {
		cfg.hash = hash
		cfg.digest = digest
	}
}

// WithNoSignedAttributes omits signed attributes. The signature then covers
// the content directly and the content type must be id-data.
func WithNoSignedAttributes() SignerOption {
	return func(cfg *signerConfig) { cfg.noSignedAttrs = true }
}

// WithSubjectKeyIdentifier identifies the signer by the certificate's subject
// key identifier extension rather than by issuer and serial number.
func WithSubjectKeyIdentifier() SignerOption {
	return func(cfg *signerConfig) { cfg.useSKI = true }
}

// WithSigningTime adds a signing-time signed attribute.
func WithSigningTime(t time.Time) SignerOption {
	return func(cfg *signerConfig) { cfg.signingTime = t }
}

// WithSignedAttributes adds caller-supplied signed attributes. The
// content-type, message-digest and signing-time attributes are owned by the
// builder and can't be supplied here.
func WithSignedAttributes(attrs ...Attribute) SignerOption {
	return func(cfg *signerConfig) { cfg.signedAttrs = append(cfg.signedAttrs, attrs...) }
}

// WithUnsignedAttributes adds attributes that aren't covered by the
// signature.
func WithUnsignedAttributes(attrs ...Attribute) SignerOption {
	return func(cfg *signerConfig) { cfg.unsignedAttrs = append(cfg.unsignedAttrs, attrs...) }
}

// AddSignerInfo adds a SignerInfo to the SignedData. The certificate matching
// signer's public key must be in chain; chain certificates not already in the
// message are added to its certificate set.
func (sd *SignedData) AddSignerInfo(chain []*x509.Certificate, signer crypto.Signer, opts ...SignerOption) error {
	var cfg signerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.noSignedAttrs {
		if len(cfg.signedAttrs) > 0 || !cfg.signingTime.IsZero() {
			return xerrors.Errorf("cms/protocol: signed attributes without a signed attribute set: %w", ErrInvalidAttribute)
		}
		if !sd.EncapContentInfo.IsTypeData() {
			return xerrors.Errorf("cms/protocol: signed attributes are required for %v content: %w", sd.EncapContentInfo.EContentType, ErrInvalidAttribute)
		}
	}

	pub, err := x509.MarshalPKIXPublicKey(signer.Public())
	if err != nil {
		return err
	}

	var cert *x509.Certificate
	for _, c := range chain {
		certPub, err := x509.MarshalPKIXPublicKey(c.PublicKey)
		if err != nil {
			return err
		}

		if bytes.Equal(pub, certPub) {
			cert = c
		}

		if !sd.hasCertificate(c) {
			if err = sd.AddCertificate(c); err != nil {
				return err
			}
		}
	}
	if cert == nil {
		return xerrors.New("cms/protocol: no certificate matching signer's public key")
	}

	si := SignerInfo{Version: 1}

	if cfg.useSKI {
		si.Version = 3
		if si.SID, err = NewSubjectKeyIdentifier(cert); err != nil {
			return err
		}
	} else if si.SID, err = NewIssuerAndSerialNumber(cert); err != nil {
		return err
	}

	hash := cfg.hash
	if hash == 0 {
		hash = oid.HashForPublicKey(signer.Public())
	}
	if si.DigestAlgorithm, err = oid.DigestAlgorithmForHash(hash); err != nil {
		return err
	}

	signatureAlgorithm, err := oid.SignatureAlgorithmForPublicKey(signer.Public())
	if err != nil {
		return err
	}
	si.SignatureAlgorithm = pkix.AlgorithmIdentifier{Algorithm: signatureAlgorithm}

	var content []byte
	if cfg.digest == nil {
		if content, err = sd.EncapContentInfo.EContentValue(); err != nil {
			return err
		}
		if content == nil {
			return xerrors.New("cms/protocol: no content; supply a digest with WithContentDigest")
		}
	}

	digest := cfg.digest
	if digest == nil {
		md := hash.New()
		md.Write(content)
		digest = md.Sum(nil)
	} else if len(digest) != hash.Size() {
		return xerrors.Errorf("cms/protocol: digest is %d bytes but %v digests are %d", len(digest), hash, hash.Size())
	}

	// Ed25519 signs the message itself, not a digest of it.
	_, isEd25519 := signer.Public().(ed25519.PublicKey)

	if cfg.noSignedAttrs {
		if isEd25519 {
			if content == nil {
				return xerrors.New("cms/protocol: Ed25519 signs the message itself; supply content or use signed attributes")
			}
			si.Signature, err = signer.Sign(rand.Reader, content, crypto.Hash(0))
		} else {
			si.Signature, err = signer.Sign(rand.Reader, digest, hash)
		}
		if err != nil {
			return xerrors.Errorf("cms/protocol: signing: %w", err)
		}
	} else {
		mdAttr, err := NewAttribute(oid.AttributeMessageDigest, digest)
		if err != nil {
			return err
		}
		ctAttr, err := NewAttribute(oid.AttributeContentType, sd.EncapContentInfo.EContentType)
		if err != nil {
			return err
		}

		attrs := Attributes{ctAttr, mdAttr}

		if !cfg.signingTime.IsZero() {
			stAttr, err := NewAttribute(oid.AttributeSigningTime, cfg.signingTime.UTC())
			if err != nil {
				return err
			}
			attrs = append(attrs, stAttr)
		}

		for _, attr := range cfg.signedAttrs {
			if isBuilderAttribute(attr.Type) {
				return xerrors.Errorf("cms/protocol: attribute %v is owned by the builder: %w", attr.Type, ErrInvalidAttribute)
			}
			if err = attrs.AddAttribute(attr); err != nil {
				return err
			}
		}

		if si.SignedAttrs, err = attrs.sorted(); err != nil {
			return err
		}

		// The signature covers the attributes re-encoded as an explicit SET,
		// not their [0] IMPLICIT wire form.
		message, err := si.SignedAttrs.MarshaledForSigning()
		if err != nil {
			return err
		}

		if isEd25519 {
			si.Signature, err = signer.Sign(rand.Reader, message, crypto.Hash(0))
		} else {
			md := hash.New()
			md.Write(message)
			si.Signature, err = signer.Sign(rand.Reader, md.Sum(nil), hash)
		}
		if err != nil {
			return xerrors.Errorf("cms/protocol: signing: %w", err)
		}
	}

	if len(cfg.unsignedAttrs) > 0 {
		var unsigned Attributes
		for _, attr := range cfg.unsignedAttrs {
			if err = unsigned.AddAttribute(attr); err != nil {
				return err
			}
		}
		if si.UnsignedAttrs, err = unsigned.sorted(); err != nil {
			return err
		}
	}

	sd.addDigestAlgorithm(si.DigestAlgorithm)
	sd.SignerInfos = append(sd.SignerInfos, si)
	sd.updateVersion()

	return nil
}

// isBuilderAttribute checks for attribute types that AddSignerInfo assembles
// itself.
func isBuilderAttribute(attrType asn1.ObjectIdentifier) bool {
	return attrType.Equal(oid.AttributeContentType) ||
		attrType.Equal(oid.AttributeMessageDigest) ||
		attrType.Equal(oid.AttributeSigningTime)
}

// AddCertificate adds a certificate, erroring if it's already present.
func (sd *SignedData) AddCertificate(cert *x509.Certificate) error {
	if sd.hasCertificate(cert) {
		return xerrors.New("cms/protocol: certificate already added")
	}

	var rv asn1.RawValue
	if _, err := asn1.Unmarshal(cert.Raw, &rv); err != nil {
		return err
	}

	sd.Certificates = append(sd.Certificates, rv)

	return nil
}

func (sd *SignedData) hasCertificate(cert *x509.Certificate) bool {
	for _, existing := range sd.Certificates {
		if bytes.Equal(existing.FullBytes, cert.Raw) {
			return true
		}
	}

	return false
}

// ClearCertificates removes all certificates.
func (sd *SignedData) ClearCertificates() {
	sd.Certificates = []asn1.RawValue{}
}

// X509Certificates gets the certificates, assuming that they're X.509
// encoded.
func (sd *SignedData) X509Certificates() ([]*x509.Certificate, error) {
	// Certificates field is optional. Handle missing value.
	if sd.Certificates == nil {
		return nil, nil
	}

	// Empty set
	if len(sd.Certificates) == 0 {
		return []*x509.Certificate{}, nil
	}

	certs := make([]*x509.Certificate, 0, len(sd.Certificates))
	for _, raw := range sd.Certificates {
		if raw.Class != asn1.ClassUniversal || raw.Tag != asn1.TagSequence {
			// CertificateChoices other than plain certificates.
			return nil, ErrUnsupported
		}

		x509Cert, err := x509.ParseCertificate(raw.FullBytes)
		if err != nil {
			return nil, err
		}

		certs = append(certs, x509Cert)
	}

	return certs, nil
}

// addDigestAlgorithm adds a digest algorithm to the set if it isn't already
// present.
func (sd *SignedData) addDigestAlgorithm(algo pkix.AlgorithmIdentifier) {
	for _, existing := range sd.DigestAlgorithms {
		if existing.Algorithm.Equal(algo.Algorithm) {
			return
		}
	}

	sd.DigestAlgorithms = append(sd.DigestAlgorithms, algo)
}

// updateVersion recomputes the CMS version (RFC 5652 Section 5.1). Only the
// content type and the SignerInfo versions matter here: other certificate
// choices and CRLs aren't produced by this builder.
func (sd *SignedData) updateVersion() {
	version := 1
	if !sd.EncapContentInfo.IsTypeData() {
		version = 3
	}
	for _, si := range sd.SignerInfos {
		if si.Version == 3 {
			version = 3
		}
	}

	sd.Version = version
}

// ContentInfo returns the SignedData wrapped in a ContentInfo.
func (sd *SignedData) ContentInfo() (ContentInfo, error) {
	var nilCI ContentInfo

	der, err := asn1.Marshal(*sd)
	if err != nil {
		return nilCI, err
	}

	return ContentInfo{
		ContentType: oid.ContentTypeSignedData,
		Content: asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			Bytes:      der,
			IsCompound: true,
		},
	}, nil
}

// ContentInfoDER returns the SignedData wrapped in a ContentInfo and DER
// encoded.
func (sd *SignedData) ContentInfoDER() ([]byte, error) {
	ci, err := sd.ContentInfo()
	if err != nil {
		return nil, err
	}

	return asn1.Marshal(ci)
}
