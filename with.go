package imagine

// With runs fn with a active and releases a on every path out of fn,
// normal return, error, or panic alike. fn's error comes back unmodified.
// This is the scoped-resource form of the Enter/Exit pair; use it unless a
// scope genuinely cannot be expressed as one function.
func With(a Activation, fn func() error) error {
	a.Enter()
	defer a.Exit()
	return fn()
}
