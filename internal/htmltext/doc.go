// Package htmltext finds the human-readable text runs of an HTML document
// and writes translations back into exactly the byte spans they came from.
// Markup, attributes, comments and the contents of script-like elements are
// never touched, so a document with no translated segments comes back
// byte-for-byte identical.
package htmltext
