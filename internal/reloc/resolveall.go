package reloc

import (
	"context"

	"golang.org/x/sync/errgroup"

	"coregraph/internal/types"
)

// Record is one relocation to resolve: a local root type and the recorded
// integer access spec against its local definition.
type Record struct {
	Root types.TypeID
	Spec AccessSpec
}

// Resolved is the full outcome for one record.
type Resolved struct {
	Record    Record
	Accessors []Accessor
	Local     Relocation // placement on the local definition
	Target    Relocation // placement on the matched target
	Matched   []types.TypeID
}

// ResolveRecord resolves one record against every target candidate sharing
// the local root's name. All candidates that match must agree on the offset;
// disagreement is an *AmbiguousOffsetError, no match a *NoCandidateError.
// Matched candidates are memoized per local root, narrowing later records on
// the same root to the types that matched before.
func (r *Resolver) ResolveRecord(rec Record) (*Resolved, error) {
	accs, err := Accessors(r.Local.Graph, rec.Root, rec.Spec)
	if err != nil {
		return nil, err
	}
	local, err := r.Local.relocationOf(rec.Root, rec.Spec)
	if err != nil {
		return nil, err
	}
	// Candidates are indexed by composite tag name, so a typedef root must
	// resolve through its underlying tag.
	tin := r.Local.Graph.Types
	rootName := tin.NameOf(tin.Underlying(rec.Root))
	if rootName == "" {
		rootName = tin.NameOf(rec.Root)
	}

	var (
		target  Relocation
		matched []types.TypeID
	)
	for _, cand := range r.candidates(rec.Root, rootName) {
		r.tracef("reloc %s (spec %s): matching candidate type#%d", rootName, rec.Spec, cand)
		rel, rerr := r.Resolve(cand, accs)
		if rerr != nil {
			r.tracef("reloc %s (spec %s): candidate type#%d rejected: %v", rootName, rec.Spec, cand, rerr)
			continue
		}
		if len(matched) > 0 && rel.ByteOffset != target.ByteOffset {
			return nil, &AmbiguousOffsetError{
				Name:      rootName,
				Spec:      rec.Spec.String(),
				First:     target.Root,
				FirstOff:  target.ByteOffset,
				Second:    rel.Root,
				SecondOff: rel.ByteOffset,
			}
		}
		if len(matched) == 0 {
			target = rel
		}
		matched = append(matched, cand)
	}
	if len(matched) == 0 {
		return nil, &NoCandidateError{Name: rootName, Spec: rec.Spec.String()}
	}
	r.memoize(rec.Root, matched)
	return &Resolved{
		Record:    rec,
		Accessors: accs,
		Local:     local,
		Target:    target,
		Matched:   matched,
	}, nil
}

// ResolveAll resolves independent records concurrently over the shared
// read-only graphs. jobs <= 0 means unlimited. The first failure cancels the
// remaining work.
func (r *Resolver) ResolveAll(ctx context.Context, recs []Record, jobs int) ([]*Resolved, error) {
	// Warm the candidate index up front so the workers only read it.
	r.candidateIndex()

	out := make([]*Resolved, len(recs))
	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, rec := range recs {
		i, rec := i, rec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := r.ResolveRecord(rec)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// candidates returns the target types a local root may match: the memoized
// set from earlier records when present, otherwise every named target
// declaration sharing the root's name.
func (r *Resolver) candidates(localRoot types.TypeID, name string) []types.TypeID {
	r.mu.Lock()
	if ids, ok := r.matched[localRoot]; ok {
		r.mu.Unlock()
		return ids
	}
	r.mu.Unlock()
	return r.candidateIndex()[name]
}

func (r *Resolver) memoize(localRoot types.TypeID, ids []types.TypeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.matched == nil {
		r.matched = make(map[types.TypeID][]types.TypeID)
	}
	r.matched[localRoot] = ids
}

func (r *Resolver) candidateIndex() map[string][]types.TypeID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nameIndex != nil {
		return r.nameIndex
	}
	idx := make(map[string][]types.TypeID)
	tin := r.Target.Graph.Types
	for _, id := range r.Target.Graph.Decls {
		canon := tin.Underlying(id)
		tt, ok := tin.Lookup(canon)
		if !ok || !tt.Kind.IsComposite() {
			continue
		}
		name := tin.NameOf(canon)
		if name == "" {
			continue
		}
		if ids := idx[name]; len(ids) > 0 && ids[len(ids)-1] == canon {
			// A fwd decl and its definition reach the same canonical type.
			continue
		}
		idx[name] = append(idx[name], canon)
	}
	r.nameIndex = idx
	return idx
}
