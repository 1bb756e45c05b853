package report

// SetHostname replaces the host lookup.
func (b *Builder) SetHostname(fn func() string) {
	b.hostname = fn
}
