package unit

import "testing"

func TestCargoRemove(t *testing.T) {
	c := Cargo{"SALT": 3, "CLOTH": 1}
	if got := c.Remove("SALT", 2); got != 2 || c.Count("SALT") != 1 {
		t.Fatalf("Remove(SALT,2)=%d left=%d", got, c.Count("SALT"))
	}
	if got := c.Remove("CLOTH", 5); got != 1 {
		t.Fatalf("Remove(CLOTH,5)=%d want 1", got)
	}
	if _, ok := c["CLOTH"]; ok {
		t.Fatalf("expected CLOTH removed, got %#v", c)
	}
	if got := c.Remove("WINE", 0); got != 0 {
		t.Fatalf("Remove of missing good=%d", got)
	}
	if got := c.Remove("SALT", 0); got != 1 || len(c) != 0 {
		t.Fatalf("Remove all=%d cargo=%#v", got, c)
	}
}

func TestCargoAddAndGoods(t *testing.T) {
	c := Cargo{}
	c.Add("WINE", 2)
	c.Add("", 4)
	c.Add("SALT", 0)
	c.Add("AMBER", 1)
	goods := c.Goods()
	if len(goods) != 2 || goods[0] != "AMBER" || goods[1] != "WINE" {
		t.Fatalf("Goods()=%v", goods)
	}
}

func TestSortByID(t *testing.T) {
	us := []*Unit{{ID: "u3"}, {ID: "u1"}, {ID: "u2"}}
	SortByID(us)
	if us[0].ID != "u1" || us[2].ID != "u3" {
		t.Fatalf("order=%s,%s,%s", us[0].ID, us[1].ID, us[2].ID)
	}
}
