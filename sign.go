package cms

import (
	"crypto"
	"crypto/x509"

	"github.com/strandsec/cms/protocol"
)

// Sign creates a CMS SignedData from the content and signs it with the
// signer's key. The certificate chain is embedded so that verifiers can
// resolve the signer. The DER encoded CMS message is returned.
func Sign(data []byte, chain []*x509.Certificate, signer crypto.Signer, opts ...protocol.SignerOption) ([]byte, error) {
	sd, err := NewSignedData(data)
	if err != nil {
		return nil, err
	}

	if err = sd.Sign(chain, signer, opts...); err != nil {
		return nil, err
	}

	return sd.ToDER()
}

// SignDetached creates a detached CMS SignedData from the content and signs
// it with the signer's key. The content is covered by the signature but not
// embedded in the returned DER encoded message.
func SignDetached(data []byte, chain []*x509.Certificate, signer crypto.Signer, opts ...protocol.SignerOption) ([]byte, error) {
	sd, err := NewSignedData(data)
	if err != nil {
		return nil, err
	}

	if err = sd.Sign(chain, signer, opts...); err != nil {
		return nil, err
	}

	sd.Detached()

	return sd.ToDER()
}

// SignDigest creates a detached CMS SignedData over content this package
// never sees: the caller supplies the content digest and the hash that
// produced it. The DER encoded CMS message is returned.
func SignDigest(hash crypto.Hash, digest []byte, chain []*x509.Certificate, signer crypto.Signer, opts ...protocol.SignerOption) ([]byte, error) {
	sd, err := NewSignedData(nil)
	if err != nil {
		return nil, err
	}

	opts = append([]protocol.SignerOption{protocol.WithContentDigest(hash, digest)}, opts...)

	if err = sd.Sign(chain, signer, opts...); err != nil {
		return nil, err
	}

	return sd.ToDER()
}

// Sign adds a signer to the SignedData. The chain's certificates are added
// to the message and the certificate matching the signer's public key
// identifies the new SignerInfo.
func (sd *SignedData) Sign(chain []*x509.Certificate, signer crypto.Signer, opts ...protocol.SignerOption) error {
	return sd.psd.AddSignerInfo(chain, signer, opts...)
}
