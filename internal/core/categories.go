package core

var (
	incomeCategories = []string{
		"Salary", "Freelance", "Business", "Investment", "Bonus", "Gift", "Other Income",
	}
	expenseCategories = []string{
		"Food", "Transport", "Utilities", "Entertainment", "Shopping",
		"Healthcare", "Education", "Rent", "Bills", "Other Expense",
	}
)

// Categories returns the suggested categories for a transaction type.
// Free text categories are still accepted everywhere.
func Categories(t TxType) []string {
	switch t {
	case Income:
		return append([]string(nil), incomeCategories...)
	case Expense:
		return append([]string(nil), expenseCategories...)
	}
	return nil
}
