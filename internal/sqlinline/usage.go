package sqlinline

const QInsertUsageEvent = `--sql f159d8c2-6b30-47ae-92f5-d04b8a3e67c1
insert into usage_events(id, tenant_id, job_id, event_type, success, code, latency_ms, created_at)
values (gen_random_uuid(), $1::uuid, $2::uuid, $3::text, $4::boolean, $5::text, $6::int, now());
`
