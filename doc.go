// Package imagine is a dynamic override-layering engine: it lets calling
// code temporarily replace the result a designated callable produces, for a
// specific input or for all inputs, within a delimited scope. Overrides
// nest, compose across several callables, and can be rebased onto whatever
// overrides are live somewhere else. The original computation and its call
// sites stay untouched; the engine only intercepts results.
//
// Overrides accumulate on persistent chains of immutable scenes, so building
// a new what-if never disturbs one built earlier:
//
//	price := imagine.Wrap("price", lookupPrice)
//
//	w := price.At(imagine.String("pear")).Imagine(imagine.Int(120))
//	err := imagine.With(w, func() error {
//		v, err := price.Call(imagine.String("pear")) // 120 while w is active
//		...
//	})
//	// price.Call(imagine.String("pear")) is back to the genuine result here.
//
// Activations combine left to right and release in mirror order, and
// Rebase() re-parents a chain built in isolation onto the live one, so its
// overrides add to an enclosing scope instead of replacing it.
//
// Everything here assumes a single logical thread per wrapped callable;
// see Fn for the exact contract.
package imagine
