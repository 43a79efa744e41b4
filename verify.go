package cms

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"

	"golang.org/x/xerrors"

	"github.com/strandsec/cms/oid"
	"github.com/strandsec/cms/protocol"
)

// Verification failure classes. One signer failing one way must stay
// distinguishable from another: a digest mismatch means the content changed,
// a signature failure means the signed bytes didn't come from the
// certificate's key.
var (
	// ErrDigestMismatch is returned when the message-digest signed attribute
	// doesn't match the digest of the content.
	ErrDigestMismatch = xerrors.New("cms: digest mismatch")

	// ErrContentTypeMismatch is returned when the content-type signed
	// attribute doesn't match the encapsulated content type.
	ErrContentTypeMismatch = xerrors.New("cms: content type mismatch")

	// ErrSignatureInvalid is returned when a signature doesn't verify under
	// the signer certificate's public key.
	ErrSignatureInvalid = xerrors.New("cms: invalid signature")
)

// SignerVerification is the verification outcome for one SignerInfo.
type SignerVerification struct {
	// SignerInfo is the signer this outcome describes.
	SignerInfo protocol.SignerInfo

	// Certificate is the signer certificate resolved from the message's
	// certificate set, or nil when resolution failed.
	Certificate *x509.Certificate

	// Ambiguous is set when more than one certificate matched the signer
	// identifier. The first match in certificate order was used.
	Ambiguous bool

	// Err is nil for a valid signature and classifies the failure
	// otherwise.
	Err error
}

// Verify checks every signature against the embedded content, returning one
// SignerVerification per SignerInfo. One signer failing doesn't stop
// evaluation of the rest; the error return is reserved for structural
// problems with the message as a whole.
//
// Verification doesn't chain the signer certificates to a trust anchor.
// Callers apply their own pass/fail policy over the returned results.
func (sd *SignedData) Verify() ([]SignerVerification, error) {
	content, err := sd.psd.EncapContentInfo.EContentValue()
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, xerrors.New("cms: signature is detached; verify with VerifyDetached or VerifyDigest")
	}

	return sd.verify(content, 0, nil)
}

// VerifyDetached checks every signature against content distributed
// separately from the message.
func (sd *SignedData) VerifyDetached(content []byte) ([]SignerVerification, error) {
	if !sd.IsDetached() {
		return nil, xerrors.New("cms: message has embedded content; verify with Verify")
	}
	if content == nil {
		content = []byte{}
	}

	return sd.verify(content, 0, nil)
}

// VerifyDigest checks every signature against a precomputed digest of
// separately distributed content. A signer whose digest algorithm differs
// from hash can't be checked this way and reports a digest mismatch.
func (sd *SignedData) VerifyDigest(hash crypto.Hash, digest []byte) ([]SignerVerification, error) {
	if !sd.IsDetached() {
		return nil, xerrors.New("cms: message has embedded content; verify with Verify")
	}

	return sd.verify(nil, hash, digest)
}

func (sd *SignedData) verify(content []byte, hash crypto.Hash, digest []byte) ([]SignerVerification, error) {
	certs, err := sd.psd.X509Certificates()
	if err != nil {
		return nil, err
	}

	results := make([]SignerVerification, len(sd.psd.SignerInfos))
	for i, si := range sd.psd.SignerInfos {
		results[i] = sd.verifySignerInfo(si, certs, content, hash, digest)
	}

	return results, nil
}

func (sd *SignedData) verifySignerInfo(si protocol.SignerInfo, certs []*x509.Certificate, content []byte, hash crypto.Hash, digest []byte) SignerVerification {
	result := SignerVerification{SignerInfo: si}

	matches, err := si.FindCertificates(certs)
	if err != nil {
		result.Err = err
		return result
	}

	// Redundant certificate sets are tolerated: the first match in message
	// order is used and the result is flagged.
	result.Certificate = matches[0]
	result.Ambiguous = len(matches) > 1

	siHash, err := si.Hash()
	if err != nil {
		result.Err = err
		return result
	}

	var contentDigest []byte
	if content != nil {
		h := siHash.New()
		h.Write(content)
		contentDigest = h.Sum(nil)
	} else {
		if hash != siHash {
			result.Err = xerrors.Errorf("cms: digest computed with %v but signer uses %v: %w", hash, siHash, ErrDigestMismatch)
			return result
		}
		contentDigest = digest
	}

	if si.SignedAttrs == nil {
		result.Err = sd.verifyDirectSignature(si, result.Certificate, content, contentDigest, siHash)
		return result
	}

	messageDigestAttr, err := si.GetMessageDigestAttribute()
	if err != nil {
		result.Err = err
		return result
	}
	if !bytes.Equal(messageDigestAttr, contentDigest) {
		result.Err = ErrDigestMismatch
		return result
	}

	contentTypeAttr, err := si.GetContentTypeAttribute()
	if err != nil {
		result.Err = err
		return result
	}
	if !contentTypeAttr.Equal(sd.psd.EncapContentInfo.EContentType) {
		result.Err = ErrContentTypeMismatch
		return result
	}

	// The signature covers the signed attributes re-encoded canonically as
	// an explicit SET, not the content and not the wire bytes.
	signedMessage, err := si.SignedAttrs.MarshaledForSigning()
	if err != nil {
		result.Err = err
		return result
	}

	algo, err := si.X509SignatureAlgorithm()
	if err != nil {
		result.Err = err
		return result
	}

	if err = result.Certificate.CheckSignature(algo, signedMessage, si.Signature); err != nil {
		result.Err = xerrors.Errorf("cms: %v: %w", err, ErrSignatureInvalid)
	}

	return result
}

// verifyDirectSignature handles SignerInfos without signed attributes, where
// the signature covers the content itself. RFC 5652 permits the omission
// only for id-data content.
func (sd *SignedData) verifyDirectSignature(si protocol.SignerInfo, cert *x509.Certificate, content, contentDigest []byte, siHash crypto.Hash) error {
	if !sd.psd.EncapContentInfo.IsTypeData() {
		return xerrors.Errorf("cms: signed attributes are required for %v content: %w", sd.psd.EncapContentInfo.EContentType, protocol.ErrInvalidAttribute)
	}

	if content != nil {
		algo, err := si.X509SignatureAlgorithm()
		if err != nil {
			return err
		}
		if err = cert.CheckSignature(algo, content, si.Signature); err != nil {
			return xerrors.Errorf("cms: %v: %w", err, ErrSignatureInvalid)
		}
		return nil
	}

	// Without the content there is nothing to rehash, so only schemes that
	// sign a bare digest work here.
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		if oid.SignatureAlgorithmRSAPSS.Equal(si.SignatureAlgorithm.Algorithm) {
			return xerrors.Errorf("cms: RSASSA-PSS over a bare digest: %w", oid.ErrUnsupportedAlgorithm)
		}
		if err := rsa.VerifyPKCS1v15(pub, siHash, contentDigest, si.Signature); err != nil {
			return xerrors.Errorf("cms: %v: %w", err, ErrSignatureInvalid)
		}
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(pub, contentDigest, si.Signature) {
			return ErrSignatureInvalid
		}
	default:
		return xerrors.Errorf("cms: %T can't verify a bare digest: %w", pub, oid.ErrUnsupportedAlgorithm)
	}

	return nil
}
