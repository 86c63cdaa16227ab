// Package hla implements the IEEE 1516-2010 basic data representations the
// bridge uses to encode attribute and parameter values.
//
// Supported encodings:
//
//	HLAfloat64BE      8-byte IEEE 754, big endian
//	HLAfloat32BE      4-byte IEEE 754, big endian
//	HLAinteger64BE    8-byte two's complement, big endian
//	HLAinteger32BE    4-byte two's complement, big endian
//	HLAboolean        HLAinteger32BE, 1 for true and 0 for false
//	HLAunicodeString  HLAinteger32BE element count then UTF-16BE code units
//	HLAASCIIstring    HLAinteger32BE length then 7-bit ASCII bytes
//
// Decode is the exact inverse of Encode for every supported kind and is used
// by tests and the memory ambassador to inspect sent updates.
package hla
