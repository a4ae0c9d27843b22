package model

// ResultRow is the unit written to sinks and shown in result views.
type ResultRow struct {
	MC          MCNumber `json:"mc_number"`
	CompanyName string   `json:"company_name"`
	Address     string   `json:"address"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Tier        Tier     `json:"status"`
}

// Outcome is the classified result of processing one MC number.
type Outcome struct {
	MC      MCNumber       `json:"mc_number"`
	Gate    GateResult     `json:"gate"`
	Contact *ContactRecord `json:"contact,omitempty"`
	Tier    Tier           `json:"tier"`
	Err     string         `json:"error,omitempty"`
}

// Row renders the outcome as a result row. Gate failures show the reason
// label in the contact columns; session faults show the error text.
func (o Outcome) Row() ResultRow {
	row := ResultRow{MC: o.MC, Tier: o.Tier}
	switch {
	case o.Err != "":
		msg := "Error: " + o.Err
		row.CompanyName, row.Address, row.Email, row.Phone = msg, msg, msg, msg
	case !o.Gate.Passed():
		label := o.Gate.Reason.Label()
		row.CompanyName, row.Address = NotAvailable, NotAvailable
		row.Email, row.Phone = label, label
	case o.Contact != nil:
		row.CompanyName = o.Contact.CompanyName
		row.Address = o.Contact.Address
		row.Email = o.Contact.Email
		row.Phone = o.Contact.Phone
	default:
		c := EmptyContact()
		row.CompanyName, row.Address, row.Email, row.Phone = c.CompanyName, c.Address, c.Email, c.Phone
	}
	return row
}
