package solver_test

import (
	"context"
	"fmt"

	"github.com/prologkit/warren/solver"
)

func Example() {
	s, _ := solver.NewSolver(`
        % Natural number definition in terms of successor s(X).
        nat(0).
        nat(s(X)) :- nat(X).

        % Adding A+B=Sum
        add(0, Sum, Sum).
        add(s(A), B, s(Sum)) :-
            add(A, B, Sum).

        % Multiplying A*B=Product
        mul(0, _, 0).
        mul(s(A), B, Product) :-
            mul(A, B, Partial),
            add(B, Partial, Product).
    `)

	solutions, _ := s.Solve(context.Background(), `
        mul(s(s(0)), s(s(s(0))), Y), % 2*3=Y
        add(s(0), X, Y).             % 1+X=Y
    `, 0)
	for _, solution := range solutions {
		fmt.Println(solution)
	}
	// Output: Y = s(s(s(s(s(s(0)))))), X = s(s(s(s(s(0)))))
}

func ExampleSolver_Stream() {
	s, _ := solver.NewSolver(`
        color(red).
        color(green).
        color(blue).
    `)
	results, cancel := s.Stream(context.Background(), "color(C)")
	defer cancel()
	for result := range results {
		if result.Err != nil {
			fmt.Println("Error:", result.Err)
			break
		}
		fmt.Println(result.Solution)
	}
	// Output:
	// C = red
	// C = green
	// C = blue
}
