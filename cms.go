// Package cms signs and verifies messages in the RFC 5652 Cryptographic
// Message Syntax SignedData format.
//
// A message carries its signer certificates, one SignerInfo per signature,
// and content that is either embedded or distributed separately (a detached
// signature). Sign, SignDetached and SignDigest build complete DER encoded
// messages in one call; ParseSignedData followed by Verify, VerifyDetached
// or VerifyDigest checks them, reporting an outcome per signer. The
// lower-level wire types live in the protocol package and the algorithm
// registry in the oid package.
//
// Trust decisions are left to the caller: verification proves that each
// signature was made by the matching certificate in the message, not that
// the certificate chains to an anchor the caller trusts.
package cms

import (
	"github.com/strandsec/cms/protocol"
)

// SignedData represents a signed message or detached signature.
type SignedData struct {
	psd protocol.SignedData
}
