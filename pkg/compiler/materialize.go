package compiler

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/leapstack-labs/qsql/pkg/diag"
	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/token"
	"github.com/leapstack-labs/qsql/pkg/tree"
)

// Materialize builds an independent tree that selects the rows of one WITH
// binding of t. The new statement is a shallow clone of t's root whose body
// is replaced by the binding's query; the parameter declarations, the WITH
// clause and the binding's query are shared with t rather than copied, and
// stay read-only while both trees hold them.
//
// The returned tree lives in t's arena.
func Materialize(t *Tree, cteName string) (*Tree, error) {
	a := t.Arena
	query, ok := bindingQuery(a, t.Root, cteName)
	if !ok {
		return nil, fmt.Errorf("%w: no WITH binding named %s", diag.ErrUnresolvedField, cteName)
	}

	body := -1
	for i, c := range a.Children(t.Root) {
		if k := a.Kind(c); k == token.QUERY || k == token.SET_QUERY {
			body = i
		}
	}
	if body < 0 {
		return nil, fmt.Errorf("%w: statement has no query", diag.ErrInvalidChild)
	}

	root := a.ShallowClone(t.Root)
	if err := a.ReplaceChild(root, body, query); err != nil {
		return nil, err
	}
	a.Retain(root)

	id := uuid.New().String()
	logger := t.opts.Logger.With("compile_id", id)
	logger.Debug("materialized binding", "from", t.ID, "cte", cteName)
	return build(id, a, root, t.opts, logger)
}

func bindingQuery(a *tree.Arena, root tree.ID, name string) (tree.ID, bool) {
	with, ok := a.FirstChildOfKind(root, token.WITH)
	if !ok {
		return tree.Nil, false
	}
	folded := fieldkey.Fold(name)
	for _, cte := range a.Children(with) {
		if fieldkey.Fold(a.Text(cte)) == folded {
			return a.Child(cte, 0), true
		}
	}
	return tree.Nil, false
}
