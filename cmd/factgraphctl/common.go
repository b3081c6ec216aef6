package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"factgraph/internal/fact"
	"factgraph/internal/purge"
	"factgraph/internal/store"
)

// loadStoreFromLog builds a fresh in-memory store and replays every
// envelope already present in the newline-delimited JSON fact log at
// path. A missing file is not an error — an empty store is returned, the
// same "absence is not failure" posture the store contract takes toward
// missing facts.
func loadStoreFromLog(ctx context.Context, path string) (*store.Memory, error) {
	m := store.NewMemory()
	if path == "" {
		return m, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("opening fact log %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var envelopes []fact.Envelope
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var env fact.Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			return nil, fmt.Errorf("parsing fact log %s: %w", path, err)
		}
		envelopes = append(envelopes, env)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(envelopes) > 0 {
		if _, err := m.Save(ctx, envelopes); err != nil {
			return nil, fmt.Errorf("loading fact log %s: %w", path, err)
		}
	}
	return m, nil
}

// appendFactToLog appends env to the newline-delimited JSON fact log at
// path, creating it (and its parent directory) if necessary.
func appendFactToLog(path string, env fact.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// parseRef parses "Type:hash" into a fact.Reference.
func parseRef(s string) (fact.Reference, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fact.Reference{}, fmt.Errorf("malformed reference %q, want Type:hash", s)
	}
	return fact.Reference{Type: parts[0], Hash: parts[1]}, nil
}

// parseGivens parses "label=Type:hash,label2=Type2:hash2" into ordered
// labels and references, the order the spec's Givens were declared in —
// the caller is responsible for matching that order.
func parseGivens(flag string) ([]string, []fact.Reference, error) {
	if strings.TrimSpace(flag) == "" {
		return nil, nil, nil
	}
	var labels []string
	var refs []fact.Reference
	for _, part := range strings.Split(flag, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, nil, fmt.Errorf("malformed --given entry %q, want label=Type:hash", part)
		}
		ref, err := parseRef(kv[1])
		if err != nil {
			return nil, nil, err
		}
		labels = append(labels, kv[0])
		refs = append(refs, ref)
	}
	return labels, refs, nil
}

// parseFields parses "field=value,field2=value2" into fact.Scalar values,
// inferring kind the same way a hand-typed demo CLI argument naturally
// would: a parseable float64 is a number, "true"/"false" is a bool,
// everything else is a string.
func parseFields(flag string) (map[string]fact.Scalar, error) {
	out := make(map[string]fact.Scalar)
	if strings.TrimSpace(flag) == "" {
		return out, nil
	}
	for _, part := range strings.Split(flag, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed field entry %q, want field=value", part)
		}
		out[kv[0]] = inferScalar(kv[1])
	}
	return out, nil
}

func inferScalar(v string) fact.Scalar {
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return fact.NumberValue(n)
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return fact.BoolValue(b)
	}
	return fact.StringValue(v)
}

// parsePredecessors parses "role=Type:hash,role2=Type2:hash2" into
// single-valued predecessors. Multi-valued predecessor lists are not
// expressible through this CLI convenience; construct those
// programmatically against internal/fact directly.
func parsePredecessors(flag string) (map[string]fact.PredecessorValue, error) {
	out := make(map[string]fact.PredecessorValue)
	if strings.TrimSpace(flag) == "" {
		return out, nil
	}
	for _, part := range strings.Split(flag, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed --pred entry %q, want role=Type:hash", part)
		}
		ref, err := parseRef(kv[1])
		if err != nil {
			return nil, err
		}
		out[kv[0]] = fact.Single(ref)
	}
	return out, nil
}

// parsePurgeDecls parses "--purge-types" entries of the form
// "Type:TriggerType:role1|role2,...". Each declaration names the
// purge-bearing type, the fact type whose arrival keeps a descendant
// alive, and the predecessor role chain (pipe-separated) walked forward
// from the trigger back to the purge-bearing root.
func parsePurgeDecls(flag string) ([]purge.Declaration, error) {
	var decls []purge.Declaration
	if strings.TrimSpace(flag) == "" {
		return decls, nil
	}
	for _, part := range strings.Split(flag, ",") {
		fields := strings.Split(part, ":")
		if len(fields) != 3 || fields[0] == "" || fields[1] == "" {
			return nil, fmt.Errorf("malformed --purge-types entry %q, want Type:TriggerType:role1|role2", part)
		}
		decls = append(decls, purge.Declaration{
			Type:         fields[0],
			TriggerType:  fields[1],
			TriggerRoles: strings.Split(fields[2], "|"),
		})
	}
	return decls, nil
}
