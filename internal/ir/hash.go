package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainTrace    = "hyperplay/trace/v1"
	DomainDocument = "hyperplay/document/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TraceHash computes a stable digest of a transition trace. Two sessions
// replaying the same document and inputs produce the same hash.
func TraceHash(records []TransitionRecord) (string, error) {
	arr := make([]any, len(records))
	for i, r := range records {
		arr[i] = r.Canonical()
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("TraceHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// DocumentHash digests the structural skeleton of a document: node ids,
// kinds and parents in pre-order, plus link ids. Used to tag sessions.
func DocumentHash(d *Document) (string, error) {
	nodes := make([]any, 0, len(d.order))
	for _, n := range d.order {
		entry := map[string]any{
			"id":     n.ID(),
			"kind":   nodeKind(n),
			"parent": idOf(n.Parent()),
		}
		if c, ok := n.(*Context); ok {
			links := make([]any, len(c.Links))
			for i, l := range c.Links {
				links[i] = l.ID
			}
			entry["links"] = links
		}
		nodes = append(nodes, entry)
	}
	canonical, err := MarshalCanonical(map[string]any{"id": d.ID, "nodes": nodes})
	if err != nil {
		return "", fmt.Errorf("DocumentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDocument, canonical), nil
}

// MustTraceHash is like TraceHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustTraceHash(records []TransitionRecord) string {
	h, err := TraceHash(records)
	if err != nil {
		panic(err)
	}
	return h
}

func nodeKind(n Node) string {
	switch v := n.(type) {
	case *Media:
		if v.Settings {
			return "settings"
		}
		return "media"
	case *Context:
		return "context"
	case *Switch:
		return "switch"
	case *Refer:
		return "refer"
	}
	return "unknown"
}

// KindOf names a node's kind: media, settings, context, switch or refer.
func KindOf(n Node) string {
	return nodeKind(n)
}
