package circuits

import (
	"github.com/consensys/gnark-crypto/ecc"
)

// SessionCurve is the curve used by the circuits driven by proof sessions.
// Proofs over bn254 are the ones snarkjs and the Ethereum precompiles
// understand.
var SessionCurve = ecc.BN254
