package option

// Store is the contract persistence abstraction. Implementations do not need
// to be safe for concurrent use; the Registry serializes access.
type Store interface {
	// Get returns the stored contract for an id, if any.
	Get(id string) (*Contract, bool)
	// Put inserts or replaces a contract.
	Put(contract *Contract)
	// List returns all stored contracts in unspecified order.
	List() []*Contract
	// Len returns the number of stored contracts.
	Len() int
}

type memoryStore struct {
	contracts map[string]*Contract
}

// NewMemoryStore returns an in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{contracts: make(map[string]*Contract)}
}

func (s *memoryStore) Get(id string) (*Contract, bool) {
	contract, ok := s.contracts[id]
	return contract, ok
}

func (s *memoryStore) Put(contract *Contract) {
	s.contracts[contract.ID] = contract
}

func (s *memoryStore) List() []*Contract {
	contracts := make([]*Contract, 0, len(s.contracts))
	for _, contract := range s.contracts {
		contracts = append(contracts, contract)
	}
	return contracts
}

func (s *memoryStore) Len() int {
	return len(s.contracts)
}
