// Package outcome turns a finished session into a verdict: was the
// adversary caught?
//
// A guess may be submitted and replaced any number of times before
// evaluation. The first Evaluate call freezes the outcome; every later
// call returns the identical frozen value regardless of guesses
// submitted in between.
//
// Classification:
//   - CORRECT: the guess names the assigned adversary.
//   - INCORRECT: the guess names someone else.
//   - UNDETECTED: no guess was submitted, or the session had no
//     adversary to find.
package outcome
