/*
Package blocksync keeps an externally-owned tree value and a mutable store replica of the same tree in sync, in both directions, without feedback loops.

The owner of the value (a component, a document model, a session) hands the binding a new value whenever its own copy changes. The binding writes it into the store. When anything else edits the store, the binding reports the new value back through OnChange (committed edits) or OnInput (transient edits). Each side's writes are recognized when they echo back and are not propagated again.

# Concept

Values are compared by reference, never by content. Every tree edit produces a new *domain.Tree, so "did it change?" is a pointer comparison, and "is this my own write coming back?" is too. A binding owns one target in one store:

  - Root: the store's top-level node list.
  - Controlled(parentID): the children of one node, which the store flags as controlled while the binding lives.

Changing the store or the controlling node tears the old binding down (unsubscribe, discard every pending echo marker) before the new one is created, so nothing queued for the old target is ever delivered.

# Usage

	store := memory.NewStore()

	b, err := blocksync.Bind(blocksync.Props{
		Store: store,
		Value: value,
		OnChange: func(tree *domain.Tree, sel domain.Selection) {
			// Commit tree to the owner, then feed it back with Update.
		},
	})
	if err != nil {
		log.Fatal(err)
	}
	defer b.Close()

	// On every re-render of the owner:
	err = b.Update(blocksync.Props{Store: store, Value: next, OnChange: onChange})

Bindings are synchronous and not safe for concurrent use: updates and store notifications must arrive on the same goroutine.
*/
package blocksync
