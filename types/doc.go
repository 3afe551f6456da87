// Package types holds the records shared by the API server, its stores and
// the shop client.
//
// Importing types sets decimal.MarshalJSONWithoutQuotes for the whole
// process, so every decimal.Decimal encodes as a JSON number (4.99) rather
// than a string ("4.99"). Decoding accepts both forms.
package types
