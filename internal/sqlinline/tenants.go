package sqlinline

const QSelectTenantByRef = `--sql a4d91c36-2e58-4b7f-90a3-7c5e1f8d26b4
select id, slug, plan_tier, grace_credits, grace_used, api_key_enc, industry,
       base_prompt, style_key, style_notes, pricing_enabled, pricing_mode,
       blocked_topics, daily_render_cap
from tenants
where slug = $1::text or id::text = $1::text
limit 1;
`

const QSelectTenantByID = `--sql 6e2b8f47-d013-4c95-ae61-94d7b2c50e8f
select id, slug, plan_tier, grace_credits, grace_used, api_key_enc, industry,
       base_prompt, style_key, style_notes, pricing_enabled, pricing_mode,
       blocked_topics, daily_render_cap
from tenants
where id = $1::uuid;
`

const QSelectTenantCreditState = `--sql 2f0c7a58-91e4-4d3b-b6a2-c85d1e7f4903
select plan_tier, grace_credits, grace_used
from tenants
where id = $1::uuid;
`

// QConsumeGraceCredit re-checks tier eligibility and remaining credits in the
// WHERE clause at write time. Zero rows affected means one of the two
// conditions failed concurrently; callers re-read state to raise the most
// specific error.
const QConsumeGraceCredit = `--sql b8e61d2a-34f7-4c09-85b1-f92a6c0d73e5
update tenants
set grace_used = grace_used + 1, updated_at = now()
where id = $1::uuid
  and plan_tier = any($2::text[])
  and grace_used < grace_credits
returning grace_used, grace_credits;
`

const QSetTenantPlan = `--sql 0d5f3c81-a742-4e96-b028-3e6c9a1d54f7
update tenants
set plan_tier = $2::text,
    grace_credits = $3::int,
    updated_at = now()
where slug = $1::text
returning id, plan_tier, grace_credits, grace_used;
`
