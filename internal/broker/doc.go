// Package broker mints short-lived, scope-limited storage credentials
// for resolved dataset locations. The scope of a credential is fixed by
// which broker method is invoked, so callers cannot request a stronger
// scope than the operation they are performing.
package broker
