package qheis_test

import (
	"fmt"
	"log"

	"github.com/fumin/qheis"
)

func Example() {
	// The antiferromagnetic Heisenberg model on a 2x2 lattice.
	lat := qheis.Lattice{Shape: [2]int{2, 2}}
	vv, err := qheis.GroundState(lat, [3]float64{1, 1, 1}, 0)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	obs, err := qheis.Analyze(lat, vv.Vec)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	fmt.Printf("energy %.4f\n", real(vv.Val))
	fmt.Printf("correlation 0-1 %.4f, 0-3 %.4f\n", obs.Correlation[0][1], obs.Correlation[0][3])
	// Output:
	// energy -2.0000
	// correlation 0-1 -0.1667, 0-3 0.0833
}
