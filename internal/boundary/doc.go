// Package boundary is the host-facing surface of the guest.
//
// Hosts only exchange integers with the guest. Larger payloads travel
// through one shared parameter buffer: inputs are written at offset zero
// before a call and results are written back at offset zero. Runtimes and
// async substrates are referred to by generation-checked handles.
//
// A failing operation returns zero and records its kind and message in
// the status channel, read back with LastStatus and LastError.
package boundary
