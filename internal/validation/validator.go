package validation

import (
	"fmt"
	"reflect"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
	"github.com/shopspring/decimal"
)

var cent = decimal.New(1, -2)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// numeric tags (gt, gte) on decimals compare their float value
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})

	// the claimed order total must match the sum of the recomputed line totals
	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})
	v.RegisterStructValidation(itemStructValidation, Item{})

	return v
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)
	if req.TotalAmount == nil {
		return
	}

	sum := decimal.Zero
	for _, it := range req.Items {
		sum = sum.Add(orders.LineTotal(it.Quantity, it.UnitPrice))
	}
	if sum.Sub(*req.TotalAmount).Abs().GreaterThanOrEqual(cent) {
		sl.ReportError(req.TotalAmount, "total_amount", "TotalAmount", "amount_match_items",
			fmt.Sprintf("items sum %s != total_amount %s", sum.StringFixed(2), req.TotalAmount.StringFixed(2)))
	}
}

func itemStructValidation(sl validatorv10.StructLevel) {
	it := sl.Current().Interface().(Item)
	if it.TotalPrice == nil {
		return
	}
	want := orders.LineTotal(it.Quantity, it.UnitPrice)
	if want.Sub(*it.TotalPrice).Abs().GreaterThanOrEqual(cent) {
		sl.ReportError(it.TotalPrice, "total_price", "TotalPrice", "total_match_line",
			fmt.Sprintf("quantity x unit_price %s != total_price %s", want.StringFixed(2), it.TotalPrice.StringFixed(2)))
	}
}
