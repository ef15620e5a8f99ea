// Package document locates and parses the manufacturing configuration file.
// The YAML is decoded into an ordered, schema-less tree of mappings,
// sequences and scalars that the render package can serialise without
// losing the key order of the source file.
package document
