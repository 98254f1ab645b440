package events

import (
	"math/big"
	"testing"

	"satvault/crypto"
)

func TestTokenSupplyEvent(t *testing.T) {
	evt := TokenSupply{
		Token:  "vusd",
		Total:  big.NewInt(5000),
		Delta:  big.NewInt(250),
		Reason: SupplyReasonMint,
	}.Event()
	if evt == nil {
		t.Fatalf("expected event")
	}
	if evt.Type != TypeTokenSupply {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["token"] != "VUSD" {
		t.Fatalf("unexpected token attr: %s", evt.Attributes["token"])
	}
	if evt.Attributes["total"] != "5000" || evt.Attributes["delta"] != "250" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
	if evt.Attributes["reason"] != SupplyReasonMint {
		t.Fatalf("unexpected reason: %s", evt.Attributes["reason"])
	}
}

func TestVaultEventsRender(t *testing.T) {
	raw := make([]byte, 20)
	raw[0] = 1
	owner := crypto.NewAddress(crypto.AccountPrefix, raw)
	raw2 := make([]byte, 20)
	raw2[0] = 2
	liquidator := crypto.NewAddress(crypto.AccountPrefix, raw2)

	evt := Render(VaultLiquidated{Owner: owner, VaultID: 4, Liquidator: liquidator, Debt: 10, Collateral: 7, Price: 3, HealthRatio: 2})
	if evt.Type != TypeVaultLiquidated {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["owner"] != owner.String() || evt.Attributes["liquidator"] != liquidator.String() {
		t.Fatalf("unexpected addresses: %+v", evt.Attributes)
	}
	if evt.Attributes["vaultId"] != "4" || evt.Attributes["healthRatio"] != "2" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}

	price := Render(PriceSubmitted{Oracle: owner, Price: 5, Timestamp: 6, Latest: true})
	if price.Attributes["latest"] != "true" || price.Attributes["timestamp"] != "6" {
		t.Fatalf("unexpected price attrs: %+v", price.Attributes)
	}
}

func TestBufferPreservesOrder(t *testing.T) {
	var buf Buffer
	buf.Emit(OracleAuthorized{})
	buf.Emit(nil)
	buf.Emit(ParamsUpdated{Name: "collateralization_ratio", Previous: "150", Value: "175"})
	got := buf.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].EventType() != TypeOracleAuthorized || got[1].EventType() != TypeParamsUpdated {
		t.Fatalf("unexpected order: %s, %s", got[0].EventType(), got[1].EventType())
	}
	buf.Reset()
	if len(buf.Events()) != 0 {
		t.Fatalf("reset did not clear buffer")
	}
}
