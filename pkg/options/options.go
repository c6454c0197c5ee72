// Package options implements the dispatcher's option bag: a closed set of
// transport option kinds keyed by a fixed enumeration rather than the
// open-ended type-indexed map of the reference implementation (the
// "any type" generality was never exercised there).
package options

// Kind identifies a recognized option.
type Kind int

const (
	// VerifyPeer controls whether the TLS peer certificate is verified.
	// Payload: bool. Default: true.
	VerifyPeer Kind = iota
	// CACert is a filesystem path to a PEM CA bundle used instead of the
	// system trust store. Payload: string. Default: "" (use system store).
	CACert
	// ClientCert is a certificate/private-key path pair used for mutual TLS.
	// Payload: ClientCertPaths. Default: zero value (no client cert).
	ClientCert
)

// ClientCertPaths names the certificate and private-key files for mTLS.
type ClientCertPaths struct {
	CertPath string
	KeyPath  string
}

// Bag holds one payload per option Kind, each in its own field. The zero value is ready to use and behaves as if VerifyPeer were set
// to true.
type Bag struct {
	verifyPeerSet bool
	verifyPeer    bool
	caCert        string
	clientCert    ClientCertPaths
}

// NewBag returns a Bag with VerifyPeer defaulted to true.
func NewBag() Bag {
	return Bag{verifyPeerSet: true, verifyPeer: true}
}

// SetVerifyPeer replaces the VerifyPeer option.
func (b *Bag) SetVerifyPeer(v bool) {
	b.verifyPeerSet = true
	b.verifyPeer = v
}

// VerifyPeer returns the stored value, or true if never set.
func (b Bag) VerifyPeer() bool {
	if !b.verifyPeerSet {
		return true
	}
	return b.verifyPeer
}

// ClearVerifyPeer resets VerifyPeer to its default (true).
func (b *Bag) ClearVerifyPeer() {
	b.verifyPeerSet = false
	b.verifyPeer = false
}

// SetCACert replaces the CACert option.
func (b *Bag) SetCACert(path string) { b.caCert = path }

// CACert returns the stored CA bundle path, or "" if unset.
func (b Bag) CACert() string { return b.caCert }

// ClearCACert resets CACert to its default ("").
func (b *Bag) ClearCACert() { b.caCert = "" }

// SetClientCert replaces the ClientCert option.
func (b *Bag) SetClientCert(p ClientCertPaths) { b.clientCert = p }

// ClientCert returns the stored client certificate paths, or the zero value
// if unset.
func (b Bag) ClientCert() ClientCertPaths { return b.clientCert }

// ClearClientCert resets ClientCert to its default (zero value).
func (b *Bag) ClearClientCert() { b.clientCert = ClientCertPaths{} }

// Clone returns an independent deep copy; mutating the copy never affects
// the original (Bag has no reference fields, so a value copy already
// satisfies this, but Clone is kept as an explicit, self-documenting API per
// the option-bag laws in the specification).
func (b Bag) Clone() Bag {
	return b
}
