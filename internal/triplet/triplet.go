// Package triplet builds the store keys the policy engine uses: the
// sender/recipient/subnet triplet for the greylist and the sender/subnet
// pair for the auto-whitelist. The stores themselves treat these as opaque
// strings; all keying policy lives here.
package triplet

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Keyer composes store keys from connection attributes. Client addresses
// are masked to a configured prefix so a retry from an adjacent host in the
// same network still matches its greylist entry. With hashing on, keys are
// blake2b-256 digests so the on-disk store never holds raw addresses.
type Keyer struct {
	v4Bits int
	v6Bits int
	hash   bool
}

func NewKeyer(ipv4Mask, ipv6Mask int, hash bool) *Keyer {
	return &Keyer{v4Bits: ipv4Mask, v6Bits: ipv6Mask, hash: hash}
}

// Grey returns the greylist key for a connection attempt.
func (k *Keyer) Grey(sender, recipient, client string) (string, error) {
	subnet, err := k.subnet(client)
	if err != nil {
		return "", err
	}
	return k.finish(strings.Join([]string{sender, recipient, subnet}, "/")), nil
}

// AutoWL returns the auto-whitelist key for a sender and client address.
// Auto-whitelisting tracks senders, not individual recipients.
func (k *Keyer) AutoWL(sender, client string) (string, error) {
	subnet, err := k.subnet(client)
	if err != nil {
		return "", err
	}
	return k.finish(strings.Join([]string{sender, subnet}, "/")), nil
}

func (k *Keyer) subnet(client string) (string, error) {
	addr, err := netip.ParseAddr(client)
	if err != nil {
		return "", fmt.Errorf("parsing client address %q: %w", client, err)
	}
	bits := k.v6Bits
	if addr.Is4() {
		bits = k.v4Bits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "", fmt.Errorf("masking client address %q to /%d: %w", client, bits, err)
	}
	return prefix.String(), nil
}

func (k *Keyer) finish(key string) string {
	if !k.hash {
		return key
	}
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
