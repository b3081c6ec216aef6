package fact

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// ComputeHash computes the canonical content hash of a fact: a total, pure,
// platform-independent function of (type, predecessors, fields), insensitive
// to map key insertion order but preserving declared predecessor-list order.
//
// Canonicalization is hand-rolled rather than delegated to a third-party
// canonical-JSON library: see DESIGN.md for why no library in the retrieval
// pack is wired here instead.
func ComputeHash(typ string, predecessors map[string]PredecessorValue, fields map[string]Scalar) string {
	var b strings.Builder
	writeCanonical(&b, typ, predecessors, fields)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func writeCanonical(b *strings.Builder, typ string, predecessors map[string]PredecessorValue, fields map[string]Scalar) {
	b.WriteString("T:")
	writeQuotedString(b, typ)

	b.WriteString("|P:{")
	roles := make([]string, 0, len(predecessors))
	for role := range predecessors {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for i, role := range roles {
		if i > 0 {
			b.WriteByte(',')
		}
		writeQuotedString(b, role)
		b.WriteByte(':')
		pv := predecessors[role]
		if pv.Multi {
			b.WriteByte('[')
			for j, ref := range pv.Refs {
				if j > 0 {
					b.WriteByte(',')
				}
				writeRef(b, ref)
			}
			b.WriteByte(']')
		} else {
			writeRef(b, pv.First())
		}
	}
	b.WriteString("}")

	b.WriteString("|F:{")
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		writeQuotedString(b, name)
		b.WriteByte(':')
		writeScalar(b, fields[name])
	}
	b.WriteString("}")
}

func writeRef(b *strings.Builder, ref Reference) {
	b.WriteByte('{')
	writeQuotedString(b, ref.Type)
	b.WriteByte(':')
	writeQuotedString(b, ref.Hash)
	b.WriteByte('}')
}

// writeScalar encodes a scalar field using a fixed, locale-independent
// representation per kind. Number encoding uses strconv.FormatFloat with
// the shortest round-trippable representation ('g', -1, 64) — the one
// concrete choice this implementation makes for the cross-backend float
// canonicalization question spec.md leaves open (see DESIGN.md).
func writeScalar(b *strings.Builder, s Scalar) {
	switch s.Kind {
	case KindString:
		b.WriteString("s:")
		writeQuotedString(b, s.Str)
	case KindNumber:
		b.WriteString("n:")
		b.WriteString(strconv.FormatFloat(s.Num, 'g', -1, 64))
	case KindBool:
		b.WriteString("b:")
		b.WriteString(strconv.FormatBool(s.Bool))
	case KindTime:
		b.WriteString("t:")
		b.WriteString(s.Time.UTC().Format("2006-01-02T15:04:05.000000000Z"))
	}
}

func writeQuotedString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}
