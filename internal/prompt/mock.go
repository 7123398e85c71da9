package prompt

// Mock implements Prompter for testing. Each function field can be set
// to control behavior; if nil, it returns zero values.
type Mock struct {
	InputFunc   func(cfg InputConfig) (string, error)
	ConfirmFunc func(cfg ConfirmConfig) (bool, error)
	SelectFunc  func(cfg SelectConfig) (string, error)

	InputCalls   []InputConfig
	ConfirmCalls []ConfirmConfig
	SelectCalls  []SelectConfig
}

func (m *Mock) Input(cfg InputConfig) (string, error) {
	m.InputCalls = append(m.InputCalls, cfg)
	if m.InputFunc != nil {
		return m.InputFunc(cfg)
	}
	return "", nil
}

func (m *Mock) Confirm(cfg ConfirmConfig) (bool, error) {
	m.ConfirmCalls = append(m.ConfirmCalls, cfg)
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(cfg)
	}
	return false, nil
}

// Select returns cfg.Default when SelectFunc is nil.
func (m *Mock) Select(cfg SelectConfig) (string, error) {
	m.SelectCalls = append(m.SelectCalls, cfg)
	if m.SelectFunc != nil {
		return m.SelectFunc(cfg)
	}
	return cfg.Default, nil
}
