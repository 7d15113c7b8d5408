// Package template resolves {placeholder} tokens in strings and JSON-like
// values against a variable Scope.
//
// A placeholder is looked up, in order, as a function call such as
// {random(1, 10)}, an exact variable name, a dataset pick ({dataset.names}),
// filler text ({lorem_40}), a dotted path into a variable
// ({user.items.0.id}) or a builtin generator ({timestamp}). Unknown
// placeholders are left in place.
//
// Short strings without structure are additionally treated as generation
// patterns, so "user_[a-z]{8}" produces a random matching name. The
// characters ? $ ( ) and . are kept literal so URLs pass through unchanged.
package template
