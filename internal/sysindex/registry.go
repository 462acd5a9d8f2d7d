// Package sysindex builds per-system lookup indices from external
// system exports.
//
// Which systems exist, what their columns are called and how their
// records behave (sign convention, correction markers) is driven by a
// registry injected at startup, so a new external system is a registry
// entry, not a code change in matching logic.
package sysindex

// FieldSpec binds a logical field key to the set of header labels a
// system's exports are known to use for it, in preference order.
type FieldSpec struct {
	Key    string
	Labels []string
}

// SystemConfig describes one external system's export format and
// reconciliation behavior.
type SystemConfig struct {
	Name string
	// Fields is the ordered per-system field dictionary used for
	// header scoring and column mapping.
	Fields []FieldSpec

	// Logical field keys for the derived record view.
	PartnerField string
	DocField     string
	SumField     string
	DateField    string

	// CorrectionTextFields are the logical fields scanned for
	// correction/return keywords.
	CorrectionTextFields []string

	// WarehouseField names the logical field carrying the receiving
	// warehouse, used for org unit lookup. Empty when the system has
	// no such column.
	WarehouseField string

	// BuyerField names the logical field carrying the buyer entity,
	// used as an org unit lookup fallback.
	BuyerField string

	// NegativeAmounts marks a system whose ordinary amounts are
	// conventionally negative. The negative-amount correction rule is
	// disabled for such systems and deltas are computed as sums.
	NegativeAmounts bool

	// Primary marks the system whose duplicates and missing-document
	// sets are reported in the summary.
	Primary bool
}

// FieldKeys returns the logical keys in declaration order.
func (c *SystemConfig) FieldKeys() []string {
	keys := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		keys = append(keys, f.Key)
	}
	return keys
}

// Registry maps system identifiers to their configurations.
type Registry struct {
	systems map[string]*SystemConfig
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{systems: make(map[string]*SystemConfig)}
}

// Register adds or replaces a system configuration.
func (r *Registry) Register(cfg *SystemConfig) {
	if _, exists := r.systems[cfg.Name]; !exists {
		r.order = append(r.order, cfg.Name)
	}
	r.systems[cfg.Name] = cfg
}

// Get returns the configuration for a system name.
func (r *Registry) Get(name string) (*SystemConfig, bool) {
	cfg, ok := r.systems[name]
	return cfg, ok
}

// Names returns registered system names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Primary returns the system flagged as primary, or nil.
func (r *Registry) Primary() *SystemConfig {
	for _, name := range r.order {
		if r.systems[name].Primary {
			return r.systems[name]
		}
	}
	return nil
}

// DefaultRegistry returns the built-in configurations for the five
// known external systems.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(&SystemConfig{
		Name: "IIKO",
		Fields: []FieldSpec{
			{Key: "date", Labels: []string{"Дата", "Дата документа", "Дата операции"}},
			{Key: "docNumber", Labels: []string{"Входящий номер", "Номер документа", "Вх. номер", "Входящий №"}},
			{Key: "partner", Labels: []string{"Поставщик/Покупатель", "Поставщик", "Покупатель", "Контрагент"}},
			{Key: "warehouse", Labels: []string{"Склад"}},
			{Key: "sum", Labels: []string{"Сумма, р.", "Сумма", "Итого"}},
			{Key: "comment", Labels: []string{"Комментарий"}},
		},
		PartnerField:         "partner",
		DocField:             "docNumber",
		SumField:             "sum",
		DateField:            "date",
		CorrectionTextFields: []string{"comment"},
		WarehouseField:       "warehouse",
		Primary:              true,
	})

	r.Register(&SystemConfig{
		Name: "DOCSINBOX",
		Fields: []FieldSpec{
			{Key: "date", Labels: []string{"Дата", "Дата документа", "Дата операции"}},
			{Key: "docNumber", Labels: []string{"Номер накладной поставщика", "Номер накладной", "Номер ТТН", "Номер", "Номер документа"}},
			{Key: "supplier", Labels: []string{"Поставщик"}},
			{Key: "buyer", Labels: []string{"Покупатель"}},
			{Key: "sum", Labels: []string{"Сумма"}},
			{Key: "status", Labels: []string{"Статус приемки", "Статус"}},
		},
		PartnerField: "supplier",
		DocField:     "docNumber",
		SumField:     "sum",
		DateField:    "date",
		BuyerField:   "buyer",
	})

	r.Register(&SystemConfig{
		Name: "SBIS",
		Fields: []FieldSpec{
			{Key: "eventDate", Labels: []string{"Дата события", "Дата"}},
			{Key: "docNumber", Labels: []string{"Номер"}},
			{Key: "counterparty", Labels: []string{"Контрагент"}},
			{Key: "sum", Labels: []string{"Сумма"}},
			{Key: "status", Labels: []string{"Статус"}},
		},
		PartnerField: "counterparty",
		DocField:     "docNumber",
		SumField:     "sum",
		DateField:    "eventDate",
	})

	r.Register(&SystemConfig{
		Name: "SAP",
		Fields: []FieldSpec{
			{Key: "docDate", Labels: []string{"Дата документа"}},
			{Key: "paymentDate", Labels: []string{"Дата платежа"}},
			{Key: "reference", Labels: []string{"Ссылка"}},
			{Key: "counterparty", Labels: []string{"Наименование контрагента"}},
			{Key: "sum", Labels: []string{"Сумма в ВВ", "Сумма"}},
			{Key: "docType", Labels: []string{"Вид документа"}},
		},
		PartnerField:         "counterparty",
		DocField:             "reference",
		SumField:             "sum",
		DateField:            "docDate",
		CorrectionTextFields: []string{"docType"},
		// SAP posts ordinary documents with negative amounts, so the
		// sign carries direction, not correction.
		NegativeAmounts: true,
	})

	r.Register(&SystemConfig{
		Name: "FB",
		Fields: []FieldSpec{
			{Key: "docNumber", Labels: []string{"Номер"}},
			{Key: "type", Labels: []string{"Тип"}},
			{Key: "linked", Labels: []string{"Привязан к поставке"}},
			{Key: "partner", Labels: []string{"Поставщик"}},
			{Key: "point", Labels: []string{"Точка"}},
			{Key: "date", Labels: []string{"Дата документа"}},
			{Key: "status", Labels: []string{"Статус"}},
			{Key: "deliveryStatus", Labels: []string{"Статус поставки"}},
			{Key: "sum", Labels: []string{"Сумма"}},
		},
		PartnerField:         "partner",
		DocField:             "docNumber",
		SumField:             "sum",
		DateField:            "date",
		CorrectionTextFields: []string{"type"},
	})

	return r
}
