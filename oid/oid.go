// Package oid maps the ASN.1 object identifiers used by CMS SignedData
// messages to algorithms in the Go crypto libraries. Resolution fails closed:
// identifiers, parameters or combinations that aren't recognized are rejected
// rather than defaulted.
package oid

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"

	// Register the hashes we can resolve.
	_ "crypto/md5"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"

	"golang.org/x/xerrors"
)

// ErrUnsupportedAlgorithm is returned when an algorithm identifier or a
// combination of identifiers cannot be resolved to a supported operation.
var ErrUnsupportedAlgorithm = xerrors.New("cms/oid: unsupported algorithm")

// Content type OIDs
var (
	ContentTypeData       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	ContentTypeSignedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
)

// Attribute OIDs
var (
	AttributeContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	AttributeMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	AttributeSigningTime   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
)

// Digest algorithm OIDs
var (
	DigestAlgorithmMD5    = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 5}
	DigestAlgorithmSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	DigestAlgorithmSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	DigestAlgorithmSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	DigestAlgorithmSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
)

// Signature and public key algorithm OIDs
var (
	PublicKeyAlgorithmRSA     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	PublicKeyAlgorithmECDSA   = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	PublicKeyAlgorithmEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}

	SignatureAlgorithmSHA1WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}
	SignatureAlgorithmSHA256WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	SignatureAlgorithmSHA384WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	SignatureAlgorithmSHA512WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}
	SignatureAlgorithmRSAPSS        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}

	SignatureAlgorithmECDSAWithSHA1   = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 1}
	SignatureAlgorithmECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	SignatureAlgorithmECDSAWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	SignatureAlgorithmECDSAWithSHA512 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}

	SignatureAlgorithmMGF1 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 8}
)

// X.509 extension OIDs
var (
	ExtensionSubjectKeyIdentifier = asn1.ObjectIdentifier{2, 5, 29, 14}
)

// DigestAlgorithmToCryptoHash maps digest OIDs to crypto.Hash values.
var DigestAlgorithmToCryptoHash = map[string]crypto.Hash{
	DigestAlgorithmMD5.String():    crypto.MD5,
	DigestAlgorithmSHA1.String():   crypto.SHA1,
	DigestAlgorithmSHA256.String(): crypto.SHA256,
	DigestAlgorithmSHA384.String(): crypto.SHA384,
	DigestAlgorithmSHA512.String(): crypto.SHA512,
}

// CryptoHashToDigestAlgorithm maps crypto.Hash values to digest OIDs.
var CryptoHashToDigestAlgorithm = map[crypto.Hash]asn1.ObjectIdentifier{
	crypto.SHA1:   DigestAlgorithmSHA1,
	crypto.SHA256: DigestAlgorithmSHA256,
	crypto.SHA384: DigestAlgorithmSHA384,
	crypto.SHA512: DigestAlgorithmSHA512,
}

// SignatureAlgorithmToX509SignatureAlgorithm maps OIDs that fully specify a
// signature scheme, digest included, to x509.SignatureAlgorithm values.
var SignatureAlgorithmToX509SignatureAlgorithm = map[string]x509.SignatureAlgorithm{
	SignatureAlgorithmSHA1WithRSA.String():     x509.SHA1WithRSA,
	SignatureAlgorithmSHA256WithRSA.String():   x509.SHA256WithRSA,
	SignatureAlgorithmSHA384WithRSA.String():   x509.SHA384WithRSA,
	SignatureAlgorithmSHA512WithRSA.String():   x509.SHA512WithRSA,
	SignatureAlgorithmECDSAWithSHA1.String():   x509.ECDSAWithSHA1,
	SignatureAlgorithmECDSAWithSHA256.String(): x509.ECDSAWithSHA256,
	SignatureAlgorithmECDSAWithSHA384.String(): x509.ECDSAWithSHA384,
	SignatureAlgorithmECDSAWithSHA512.String(): x509.ECDSAWithSHA512,
	PublicKeyAlgorithmEd25519.String():         x509.PureEd25519,
}

// PublicKeyAndDigestAlgorithmToX509SignatureAlgorithm maps bare key algorithm
// OIDs, which many producers emit in SignerInfo.signatureAlgorithm, combined
// with the SignerInfo's digest OID, to x509.SignatureAlgorithm values.
var PublicKeyAndDigestAlgorithmToX509SignatureAlgorithm = map[string]map[string]x509.SignatureAlgorithm{
	PublicKeyAlgorithmRSA.String(): {
		DigestAlgorithmSHA1.String():   x509.SHA1WithRSA,
		DigestAlgorithmSHA256.String(): x509.SHA256WithRSA,
		DigestAlgorithmSHA384.String(): x509.SHA384WithRSA,
		DigestAlgorithmSHA512.String(): x509.SHA512WithRSA,
	},
	PublicKeyAlgorithmECDSA.String(): {
		DigestAlgorithmSHA1.String():   x509.ECDSAWithSHA1,
		DigestAlgorithmSHA256.String(): x509.ECDSAWithSHA256,
		DigestAlgorithmSHA384.String(): x509.ECDSAWithSHA384,
		DigestAlgorithmSHA512.String(): x509.ECDSAWithSHA512,
	},
}

// HashForDigestAlgorithm resolves a digest AlgorithmIdentifier to a
// crypto.Hash. Parameters must be absent or NULL and the hash must be linked
// into the binary.
func HashForDigestAlgorithm(alg pkix.AlgorithmIdentifier) (crypto.Hash, error) {
	if !paramsNullOrAbsent(alg.Parameters) {
		return 0, xerrors.Errorf("digest algorithm %v has parameters: %w", alg.Algorithm, ErrUnsupportedAlgorithm)
	}

	hash, ok := DigestAlgorithmToCryptoHash[alg.Algorithm.String()]
	if !ok || !hash.Available() {
		return 0, xerrors.Errorf("digest algorithm %v: %w", alg.Algorithm, ErrUnsupportedAlgorithm)
	}

	return hash, nil
}

// DigestAlgorithmForHash returns the AlgorithmIdentifier emitted for a
// crypto.Hash when building SignerInfos. Parameters are omitted (RFC 5754,
// Section 2).
func DigestAlgorithmForHash(hash crypto.Hash) (pkix.AlgorithmIdentifier, error) {
	if alg, ok := CryptoHashToDigestAlgorithm[hash]; ok {
		return pkix.AlgorithmIdentifier{Algorithm: alg}, nil
	}

	return pkix.AlgorithmIdentifier{}, xerrors.Errorf("digest %v: %w", hash, ErrUnsupportedAlgorithm)
}

// HashForPublicKey returns the digest algorithm used by default when signing
// with the given key: SHA-512 for Ed25519 (RFC 8419), SHA-256 otherwise.
func HashForPublicKey(pub crypto.PublicKey) crypto.Hash {
	if _, ok := pub.(ed25519.PublicKey); ok {
		return crypto.SHA512
	}

	return crypto.SHA256
}

// SignatureAlgorithmForPublicKey returns the OID emitted in
// SignerInfo.signatureAlgorithm for signatures made with the given key. RSA
// and ECDSA signatures are identified by the bare key algorithm, matching
// what common producers emit.
func SignatureAlgorithmForPublicKey(pub crypto.PublicKey) (asn1.ObjectIdentifier, error) {
	switch pub.(type) {
	case *rsa.PublicKey:
		return PublicKeyAlgorithmRSA, nil
	case *ecdsa.PublicKey:
		return PublicKeyAlgorithmECDSA, nil
	case ed25519.PublicKey:
		return PublicKeyAlgorithmEd25519, nil
	}

	return nil, xerrors.Errorf("public key type %T: %w", pub, ErrUnsupportedAlgorithm)
}

// X509SignatureAlgorithm resolves a SignerInfo's signatureAlgorithm and
// digestAlgorithm pair to the x509.SignatureAlgorithm used for verification.
// Three shapes are recognized: OIDs that fully specify the scheme, bare key
// algorithm OIDs combined with the digest OID, and RSASSA-PSS with its
// parameters.
func X509SignatureAlgorithm(sig, digest pkix.AlgorithmIdentifier) (x509.SignatureAlgorithm, error) {
	if SignatureAlgorithmRSAPSS.Equal(sig.Algorithm) {
		return pssX509SignatureAlgorithm(sig.Parameters)
	}

	if alg, ok := SignatureAlgorithmToX509SignatureAlgorithm[sig.Algorithm.String()]; ok {
		if !paramsNullOrAbsent(sig.Parameters) {
			return x509.UnknownSignatureAlgorithm, xerrors.Errorf("signature algorithm %v has parameters: %w", sig.Algorithm, ErrUnsupportedAlgorithm)
		}
		return alg, nil
	}

	if byDigest, ok := PublicKeyAndDigestAlgorithmToX509SignatureAlgorithm[sig.Algorithm.String()]; ok {
		if !paramsNullOrAbsent(sig.Parameters) {
			return x509.UnknownSignatureAlgorithm, xerrors.Errorf("signature algorithm %v has parameters: %w", sig.Algorithm, ErrUnsupportedAlgorithm)
		}
		if alg, ok := byDigest[digest.Algorithm.String()]; ok {
			return alg, nil
		}
		return x509.UnknownSignatureAlgorithm, xerrors.Errorf("signature algorithm %v with digest %v: %w", sig.Algorithm, digest.Algorithm, ErrUnsupportedAlgorithm)
	}

	return x509.UnknownSignatureAlgorithm, xerrors.Errorf("signature algorithm %v: %w", sig.Algorithm, ErrUnsupportedAlgorithm)
}

// RSASSAPSSParams are the parameters of an RSASSA-PSS algorithm identifier
// (RFC 8017, Appendix A.2.3).
type RSASSAPSSParams struct {
	HashAlgorithm    pkix.AlgorithmIdentifier `asn1:"explicit,tag:0,optional"`
	MaskGenAlgorithm pkix.AlgorithmIdentifier `asn1:"explicit,tag:1,optional"`
	SaltLength       int                      `asn1:"explicit,tag:2,optional"`
	TrailerField     int                      `asn1:"explicit,tag:3,optional,default:1"`
}

// pssX509SignatureAlgorithm resolves RSASSA-PSS parameters. The hash, the
// MGF-1 hash and the salt length are all part of the algorithm's identity:
// combinations other than MGF-1 with the same SHA-2 hash and a hash-sized
// salt are rejected, as are the SHA-1 defaults implied by absent fields.
func pssX509SignatureAlgorithm(params asn1.RawValue) (x509.SignatureAlgorithm, error) {
	if len(params.FullBytes) == 0 {
		return x509.UnknownSignatureAlgorithm, xerrors.Errorf("RSASSA-PSS without parameters: %w", ErrUnsupportedAlgorithm)
	}

	var pss RSASSAPSSParams
	if rest, err := asn1.Unmarshal(params.FullBytes, &pss); err != nil || len(rest) > 0 {
		return x509.UnknownSignatureAlgorithm, xerrors.Errorf("malformed RSASSA-PSS parameters: %w", ErrUnsupportedAlgorithm)
	}

	hash, err := HashForDigestAlgorithm(pss.HashAlgorithm)
	if err != nil {
		return x509.UnknownSignatureAlgorithm, err
	}

	if !SignatureAlgorithmMGF1.Equal(pss.MaskGenAlgorithm.Algorithm) {
		return x509.UnknownSignatureAlgorithm, xerrors.Errorf("RSASSA-PSS mask generation %v: %w", pss.MaskGenAlgorithm.Algorithm, ErrUnsupportedAlgorithm)
	}

	var mgfHashAlg pkix.AlgorithmIdentifier
	if rest, err := asn1.Unmarshal(pss.MaskGenAlgorithm.Parameters.FullBytes, &mgfHashAlg); err != nil || len(rest) > 0 {
		return x509.UnknownSignatureAlgorithm, xerrors.Errorf("malformed RSASSA-PSS MGF parameters: %w", ErrUnsupportedAlgorithm)
	}

	mgfHash, err := HashForDigestAlgorithm(mgfHashAlg)
	if err != nil {
		return x509.UnknownSignatureAlgorithm, err
	}

	if mgfHash != hash || pss.SaltLength != hash.Size() || pss.TrailerField != 1 {
		return x509.UnknownSignatureAlgorithm, xerrors.Errorf("RSASSA-PSS parameter combination: %w", ErrUnsupportedAlgorithm)
	}

	switch hash {
	case crypto.SHA256:
		return x509.SHA256WithRSAPSS, nil
	case crypto.SHA384:
		return x509.SHA384WithRSAPSS, nil
	case crypto.SHA512:
		return x509.SHA512WithRSAPSS, nil
	}

	return x509.UnknownSignatureAlgorithm, xerrors.Errorf("RSASSA-PSS with %v: %w", hash, ErrUnsupportedAlgorithm)
}

func paramsNullOrAbsent(params asn1.RawValue) bool {
	return len(params.FullBytes) == 0 || bytes.Equal(params.FullBytes, asn1.NullBytes)
}
