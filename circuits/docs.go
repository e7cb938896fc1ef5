// Package circuits contains the contract that every circuit driven by a
// proof session must satisfy, and the tooling to get its artifacts (the
// compiled constraint system, the proving key and the verifying key).
//
// A circuit is described by a Definition. The definition provides the
// placeholder used to compile the circuit, the layout of the inputs that the
// prover and the verifier receive, and the assignments built from those
// inputs:
//
//	+-------------+      prove inputs       +-----------------+
//	|   caller    | ----------------------> | FullAssignment  |  secret + public
//	|             |      public inputs      +-----------------+
//	|             | ----------------------> | PublicAssignment|  public only
//	+-------------+                         +-----------------+
//
// The artifacts can be generated locally (development setups) or loaded
// from a hash-addressed local cache, downloading them when they are missing.
package circuits
