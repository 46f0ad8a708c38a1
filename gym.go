//go:build gym

package main

// Tasks outside the native set run on OpenAI Gym through Python
import _ "github.com/samuelfneumann/simsac/environment/gym"
