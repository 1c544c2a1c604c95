package model

import "testing"

const ordersYAML = `
table: orders
columns: [id, number, status, total, placed_at, customer.name]
relations:
  customer:
    type: belongs_to
    table: customers
    fk: customer_id
limit:
  default: 10
  max: 50
matching: true
filters:
  - name: status
    multiple: true
    options: [paid, open, {value: cancelled, label: Cancelled}]
  - name: total
    type: float
    operator: ">="
    clauses: [">=", "<=", "="]
    rule: {min: 0, max: 100000}
  - name: customer.name
    alias: customer
    operator: ilike
  - name: placed_at
    type: date
    operator: gte
  - name: owner_id
    type: int
    roles: [admin]
sorts:
  - name: placed_at
    alias: placed
    default: true
    invert: true
  - name: total
searches:
  - name: number
  - name: customer.name
    alias: customer_name
`

func mustParse(t *testing.T, name, src string) *Resource {
	t.Helper()
	res, err := ParseResource(name, []byte(src))
	if err != nil {
		t.Fatalf("ParseResource: %v", err)
	}
	return res
}
