// Package capture drives a browser over the ad-bearing page and joins two
// independent signals into candidate ads: image bytes observed on the network
// and link metadata read from the DOM.
//
// A run that finds no ad containers returns ErrStructuralFailure. Any other
// fault is contained and reported through Result.Fault alongside whatever
// candidates were joined before it.
package capture
