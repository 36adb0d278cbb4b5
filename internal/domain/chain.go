package domain

// SignerConfig identifies the key that signs transactions on a network
type SignerConfig struct {
	// Name is the secret the key was read from
	Name       string
	PrivateKey string
}

// String never prints the key
func (s SignerConfig) String() string {
	return "signer(" + s.Name + ")"
}

// GoString keeps the key out of %#v output
func (s SignerConfig) GoString() string {
	return s.String()
}

// DeployRequest is a resolved deploy step
type DeployRequest struct {
	StepID   string
	Contract string
	// Args holds resolved literals: string, bool, *big.Int or []any
	Args  []any
	Value any
}

// CallRequest is a resolved invoke step
type CallRequest struct {
	StepID   string
	Address  string
	Contract string
	Function string
	Args     []any
	Value    any
}

// DeployReceipt is the confirmed outcome of a deployment
type DeployReceipt struct {
	Address     string
	TxID        string
	BlockNumber uint64
}

// CallReceipt is the confirmed outcome of a function call
type CallReceipt struct {
	TxID        string
	BlockNumber uint64
}

// StepCheck describes a step for checking against contract artifacts before
// anything is sent. Args and Value hold resolved literals; a nil entry stands
// for a value only known once earlier steps ran.
type StepCheck struct {
	StepID   string
	Kind     StepKind
	Contract string
	Function string
	// Target is the literal address an invoke calls, if any
	Target string
	Args   []any
	Value  any
}
